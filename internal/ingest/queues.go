package ingest

import (
	"time"

	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/logger"
	"github.com/greymass/elasticindex/internal/metrics"
)

// Producer-side enqueue with cooperative throttling. While a queue sits
// above the configured size the producer signals the consumer and
// sleeps, backing off 10ms further on every oversize observation; each
// healthy append relaxes the shared sleep counter by 10ms. The bound is
// soft: a queue can exceed the limit while producers sleep.
func enqueue[T any](in *Ingester, queue *[]T, name string, e T) {
	in.mtx.Lock()
	for len(*queue) > in.opts.MaxQueueSize {
		in.queueSleepTime += 10
		sleepMs := in.queueSleepTime
		size := len(*queue)
		in.mtx.Unlock()

		in.cond.Signal()
		if sleepMs > 1000 {
			logger.Warning("queue size: %d", size)
		}
		metrics.BackpressureSleeps.Inc()
		time.Sleep(time.Duration(sleepMs) * time.Millisecond)

		in.mtx.Lock()
	}

	in.queueSleepTime -= 10
	if in.queueSleepTime < 0 {
		in.queueSleepTime = 0
	}

	*queue = append(*queue, e)
	depth := len(*queue)
	in.mtx.Unlock()

	metrics.QueueDepth.WithLabelValues(name).Set(float64(depth))
	in.cond.Signal()
}

// recoverProducer keeps producer-side failures out of the host's
// signal dispatcher: log and swallow.
func recoverProducer(name string) {
	if r := recover(); r != nil {
		logger.Error("exception while %s: %v", name, r)
	}
}

func (in *Ingester) AcceptedTransaction(t *chain.TransactionMetadata) {
	defer recoverProducer("accepted_transaction")
	enqueue(in, &in.trxQueue, "transactions", t)
}

func (in *Ingester) AppliedTransaction(t *chain.TransactionTrace) {
	defer recoverProducer("applied_transaction")
	enqueue(in, &in.traceQueue, "transaction_traces", t)
}

func (in *Ingester) AcceptedBlock(bs *chain.BlockState) {
	defer recoverProducer("accepted_block")
	enqueue(in, &in.blockQueue, "block_states", bs)
}

func (in *Ingester) IrreversibleBlock(bs *chain.BlockState) {
	defer recoverProducer("irreversible_block")
	enqueue(in, &in.irreversibleQueue, "irreversible_blocks", bs)
}
