package ingest

import (
	"time"

	"github.com/greymass/elasticindex/internal/logger"
)

// consumeEvents is the single long-lived worker. Each round it swaps
// all four queues out under the mutex, then drains them in a fixed
// order: applied traces first, so their account and ABI side effects
// are visible before the transactions and blocks that follow them get
// decoded. Do not reorder the drain.
func (in *Ingester) consumeEvents() {
	defer close(in.consumerDone)

	for {
		in.mtx.Lock()
		for len(in.trxQueue) == 0 &&
			len(in.traceQueue) == 0 &&
			len(in.blockQueue) == 0 &&
			len(in.irreversibleQueue) == 0 &&
			!in.done {
			in.cond.Wait()
		}

		traces := in.traceQueue
		in.traceQueue = nil
		trxs := in.trxQueue
		in.trxQueue = nil
		blocks := in.blockQueue
		in.blockQueue = nil
		irreversible := in.irreversibleQueue
		in.irreversibleQueue = nil
		done := in.done
		in.mtx.Unlock()

		if done {
			logger.Printf("sync", "draining queue, size: %d",
				len(traces)+len(trxs)+len(blocks)+len(irreversible))
		}

		drainTimed("process_applied_transaction", len(traces), func() {
			for _, t := range traces {
				in.processAppliedTransaction(t)
			}
		})
		drainTimed("process_accepted_transaction", len(trxs), func() {
			for _, t := range trxs {
				in.processAcceptedTransaction(t)
			}
		})
		drainTimed("process_accepted_block", len(blocks), func() {
			for _, bs := range blocks {
				in.processAcceptedBlock(bs)
			}
		})
		drainTimed("process_irreversible_block", len(irreversible), func() {
			for _, bs := range irreversible {
				in.processIrreversibleBlock(bs)
			}
		})

		if done &&
			len(traces) == 0 && len(trxs) == 0 &&
			len(blocks) == 0 && len(irreversible) == 0 {
			break
		}
	}

	logger.Printf("sync", "consumer worker shutdown gracefully")
}

// drainTimed runs one category's drain and logs throughput when it was
// slow enough to matter.
func drainTimed(name string, size int, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		per := time.Duration(0)
		if size > 0 {
			per = elapsed / time.Duration(size)
		}
		logger.Printf("sync", "%s, time per: %v, size: %d, time: %v", name, per, size, elapsed)
	}
}
