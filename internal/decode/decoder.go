package decode

import (
	"encoding/hex"
	"time"

	"github.com/greymass/elasticindex/internal/abicache"
	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/encoding"
	"github.com/greymass/elasticindex/internal/logger"
	"github.com/greymass/elasticindex/internal/metrics"
)

// Decoder turns typed chain objects into backend documents,
// substituting binary action payloads with their ABI-decoded form.
// Undecodable payloads keep their hex; a bad user ABI never stops the
// pipeline.
type Decoder struct {
	cache   *abicache.Cache
	maxTime time.Duration
}

func New(cache *abicache.Cache, maxTime time.Duration) *Decoder {
	return &Decoder{cache: cache, maxTime: maxTime}
}

// structToMap round-trips a typed value into a document map.
func structToMap(v interface{}) map[string]interface{} {
	raw, err := encoding.JSONiter.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := encoding.JSONiter.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func (d *Decoder) ActionDoc(act *chain.Action) map[string]interface{} {
	auths := make([]map[string]interface{}, 0, len(act.Authorization))
	for _, a := range act.Authorization {
		auths = append(auths, map[string]interface{}{
			"actor":      a.Actor,
			"permission": a.Permission,
		})
	}

	doc := map[string]interface{}{
		"account":       act.Account,
		"name":          act.Name,
		"authorization": auths,
	}

	data, err := hex.DecodeString(act.Data)
	if err != nil {
		doc["hex_data"] = act.Data
		return doc
	}

	if serializer := d.cache.Get(act.Account); serializer != nil {
		decoded, derr := serializer.DecodeAction(act.Name, data, d.maxTime)
		if derr == nil {
			doc["data"] = decoded
			return doc
		}
		logger.Printf("debug", "skipping decode of %s::%s: %v", act.Account, act.Name, derr)
		metrics.DecodeSkips.Inc()
	}

	doc["hex_data"] = act.Data
	return doc
}

// ActionTraceDoc is one flattened trace node: the action with decoded
// payload plus its receipt, without inline children.
func (d *Decoder) ActionTraceDoc(at *chain.ActionTrace) map[string]interface{} {
	doc := map[string]interface{}{
		"receiver":     at.Receiver(),
		"act":          d.ActionDoc(&at.Act),
		"context_free": at.ContextFree,
		"elapsed":      at.Elapsed,
		"trx_id":       at.TrxID,
	}
	if at.Console != "" {
		doc["console"] = at.Console
	}
	if at.Receipt != nil {
		doc["receipt"] = structToMap(at.Receipt)
	}
	return doc
}

func (d *Decoder) actionTraceTree(at *chain.ActionTrace) map[string]interface{} {
	doc := d.ActionTraceDoc(at)
	if len(at.InlineTraces) > 0 {
		inline := make([]map[string]interface{}, 0, len(at.InlineTraces))
		for i := range at.InlineTraces {
			inline = append(inline, d.actionTraceTree(&at.InlineTraces[i]))
		}
		doc["inline_traces"] = inline
	}
	return doc
}

// TransactionDoc decodes a signed transaction with ABI substitution on
// every action.
func (d *Decoder) TransactionDoc(trx *chain.SignedTransaction) map[string]interface{} {
	actions := make([]map[string]interface{}, 0, len(trx.Actions))
	for i := range trx.Actions {
		actions = append(actions, d.ActionDoc(&trx.Actions[i]))
	}
	cfActions := make([]map[string]interface{}, 0, len(trx.ContextFreeActions))
	for i := range trx.ContextFreeActions {
		cfActions = append(cfActions, d.ActionDoc(&trx.ContextFreeActions[i]))
	}

	doc := map[string]interface{}{
		"expiration":           trx.Expiration,
		"ref_block_num":        trx.RefBlockNum,
		"ref_block_prefix":     trx.RefBlockPrefix,
		"max_net_usage_words":  trx.MaxNetUsageWords,
		"max_cpu_usage_ms":     trx.MaxCPUUsageMs,
		"delay_sec":            trx.DelaySec,
		"actions":              actions,
		"context_free_actions": cfActions,
	}
	if len(trx.Signatures) > 0 {
		doc["signatures"] = trx.Signatures
	}
	return doc
}

// TraceDoc decodes a full transaction trace, inline children included.
func (d *Decoder) TraceDoc(t *chain.TransactionTrace) map[string]interface{} {
	traces := make([]map[string]interface{}, 0, len(t.ActionTraces))
	for i := range t.ActionTraces {
		traces = append(traces, d.actionTraceTree(&t.ActionTraces[i]))
	}

	doc := map[string]interface{}{
		"id":            t.ID,
		"block_num":     t.BlockNum,
		"block_time":    t.BlockTime,
		"elapsed":       t.Elapsed,
		"net_usage":     t.NetUsage,
		"scheduled":     t.Scheduled,
		"action_traces": traces,
	}
	if t.Receipt != nil {
		doc["receipt"] = structToMap(t.Receipt)
	}
	if t.Except != "" {
		doc["except"] = t.Except
	}
	return doc
}

// BlockDoc decodes a block body. Packed transactions carried inside
// receipts are decoded where possible; bare ids pass through.
func (d *Decoder) BlockDoc(b *chain.SignedBlock) map[string]interface{} {
	receipts := make([]map[string]interface{}, 0, len(b.Transactions))
	for i := range b.Transactions {
		r := &b.Transactions[i]
		receipt := map[string]interface{}{
			"status":          r.Status,
			"cpu_usage_us":    r.CPUUsageUs,
			"net_usage_words": r.NetUsageWords,
		}
		receipt["trx"] = d.receiptTrx(r.Trx)
		receipts = append(receipts, receipt)
	}

	doc := map[string]interface{}{
		"timestamp":          b.Timestamp,
		"producer":           b.Producer,
		"confirmed":          b.Confirmed,
		"previous":           b.Previous,
		"transaction_mroot":  b.TransactionMroot,
		"action_mroot":       b.ActionMroot,
		"schedule_version":   b.ScheduleVersion,
		"producer_signature": b.ProducerSig,
		"transactions":       receipts,
	}
	return doc
}

// receiptTrx handles the two shapes a block receipt's trx field takes:
// a bare transaction id, or an object embedding the transaction body.
func (d *Decoder) receiptTrx(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}

	var id string
	if err := encoding.JSONiter.Unmarshal(raw, &id); err == nil {
		return id
	}

	var embedded struct {
		ID          string                   `json:"id"`
		Signatures  []string                 `json:"signatures"`
		Compression interface{}              `json:"compression"`
		Transaction *chain.SignedTransaction `json:"transaction"`
	}
	if err := encoding.JSONiter.Unmarshal(raw, &embedded); err != nil || embedded.Transaction == nil {
		var passthrough interface{}
		encoding.JSONiter.Unmarshal(raw, &passthrough)
		return passthrough
	}

	doc := map[string]interface{}{
		"id":          embedded.ID,
		"transaction": d.TransactionDoc(embedded.Transaction),
	}
	if len(embedded.Signatures) > 0 {
		doc["signatures"] = embedded.Signatures
	}
	if embedded.Compression != nil {
		doc["compression"] = embedded.Compression
	}
	return doc
}
