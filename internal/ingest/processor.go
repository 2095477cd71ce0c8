package ingest

import (
	"encoding/hex"
	"encoding/json"

	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/elastic"
	"github.com/greymass/elasticindex/internal/encoding"
	"github.com/greymass/elasticindex/internal/logger"
	"github.com/greymass/elasticindex/internal/metrics"
)

func (in *Ingester) indexDoc(collection string, doc map[string]interface{}, desc string) {
	body, err := encoding.JSONiter.Marshal(doc)
	if err != nil {
		logger.Error("marshal %s document: %v", collection, err)
		return
	}
	if err := in.client.Index(collection, string(body), ""); err != nil {
		in.routeError(desc, err)
		return
	}
	metrics.DocumentsIndexed.WithLabelValues(collection).Inc()
}

// processAcceptedTransaction runs for every accepted transaction, gate
// or not: decoding keeps account state warm before the start block is
// reached.
func (in *Ingester) processAcceptedTransaction(t *chain.TransactionMetadata) {
	doc := in.decoder.TransactionDoc(&t.Trx)
	doc["trx_id"] = t.ID

	keys := t.SigningKeys
	if len(keys) == 0 && len(t.Trx.Signatures) > 0 && len(in.chainID) > 0 && t.PackedTrx != "" {
		packed, err := hex.DecodeString(t.PackedTrx)
		if err == nil {
			digest := chain.SigDigest(in.chainID, packed, nil)
			recovered, rerr := chain.RecoverSigningKeys(digest, t.Trx.Signatures)
			if rerr != nil {
				logger.Printf("debug", "unable to recover signing keys for %s: %v", t.ID, rerr)
			} else {
				keys = recovered
			}
		}
	}
	if len(keys) > 0 {
		doc["signing_keys"] = keys
	}

	doc["accepted"] = t.Accepted
	doc["implicit"] = t.Implicit
	doc["scheduled"] = t.Scheduled
	doc["createdAt"] = chain.NowMillis()

	if !in.opts.StoreTransactions {
		return
	}
	in.indexDoc(elastic.Transactions, doc, "trans index")
}

// processAppliedTransaction walks the action trace tree. The walk
// itself always runs so the account projection sees every executed
// system action; document writes stay behind the start-block gate.
func (in *Ingester) processAppliedTransaction(t *chain.TransactionTrace) {
	now := chain.NowMillis()
	bulk := elastic.NewBulkRequest()
	executed := t.Executed()

	writeAtraces := false
	for i := range t.ActionTraces {
		writeAtraces = in.addActionTrace(bulk, &t.ActionTraces[i], executed, now) || writeAtraces
	}

	if writeAtraces {
		if err := in.client.BulkPerform(bulk); err != nil {
			in.routeError("action traces", err)
		} else {
			metrics.DocumentsIndexed.WithLabelValues(elastic.ActionTraces).Add(float64(bulk.Len()))
		}
	}

	if !in.startBlockReached.Load() || !in.opts.StoreTransactionTraces {
		return
	}
	// A trace whose every action was filtered out is not stored.
	if !writeAtraces {
		return
	}

	doc := in.decoder.TraceDoc(t)
	doc["createAt"] = now
	in.indexDoc(elastic.TransactionTraces, doc, "trans_traces index")
}

// addActionTrace handles one trace node and recurses post-order into
// its inline children. A child can be kept when its parent was
// filtered out, and the other way around.
func (in *Ingester) addActionTrace(bulk *elastic.BulkRequest, at *chain.ActionTrace, executed bool, now int64) bool {
	added := false
	for i := range at.InlineTraces {
		added = in.addActionTrace(bulk, &at.InlineTraces[i], executed, now) || added
	}

	if executed && at.Receiver() == chain.SystemAccount {
		if err := in.projection.UpdateAccount(&at.Act); err != nil {
			in.routeError("update account", err)
		}
	}

	if in.startBlockReached.Load() && in.opts.StoreActionTraces && in.filter.Include(&at.Act) {
		doc := in.decoder.ActionTraceDoc(at)
		doc["createdAt"] = now

		body, err := encoding.JSONiter.Marshal(doc)
		if err != nil {
			logger.Error("marshal action trace document: %v", err)
		} else if err := bulk.Index(elastic.ActionTraces, "", string(body)); err != nil {
			logger.Error("append action trace to bulk: %v", err)
		} else {
			added = true
		}
	}

	return added
}

func (in *Ingester) processAcceptedBlock(bs *chain.BlockState) {
	if !in.startBlockReached.Load() {
		if bs.BlockNum >= in.opts.StartBlockNum {
			in.startBlockReached.Store(true)
		}
	}
	if !in.startBlockReached.Load() {
		return
	}

	if bs.BlockNum%1000 == 0 {
		logger.Printf("sync", "block_num: %d", bs.BlockNum)
	}

	now := chain.NowMillis()

	if in.opts.StoreBlockStates {
		doc := map[string]interface{}{
			"block_num":        int32(bs.BlockNum),
			"block_id":         bs.ID,
			"validated":        bs.Validated,
			"in_current_chain": bs.InCurrentChain,
			"createAt":         now,
		}
		if len(bs.HeaderState) > 0 {
			doc["block_header_state"] = json.RawMessage(bs.HeaderState)
		}
		in.indexDoc(elastic.BlockStates, doc, "block_states index")
	}

	if !in.opts.StoreBlocks || bs.Block == nil {
		return
	}

	doc := map[string]interface{}{
		"block_num":    int32(bs.BlockNum),
		"block_id":     bs.ID,
		"irreversible": false,
		"block":        in.decoder.BlockDoc(bs.Block),
		"createAt":     now,
	}
	in.indexDoc(elastic.Blocks, doc, "blocks index")
}

// processIrreversibleBlock is a wired but inert hook. The eventual
// behavior (re-marking blocks and transactions irreversible) is not
// confirmed upstream, so nothing is written yet.
func (in *Ingester) processIrreversibleBlock(bs *chain.BlockState) {
	if !in.startBlockReached.Load() {
		return
	}
	logger.Printf("debug", "irreversible block %d", bs.BlockNum)
}
