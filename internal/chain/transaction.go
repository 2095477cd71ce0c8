package chain

import "encoding/json"

// Transaction receipt statuses as reported by nodeos.
const (
	StatusExecuted  = "executed"
	StatusSoftFail  = "soft_fail"
	StatusHardFail  = "hard_fail"
	StatusDelayed   = "delayed"
	StatusExpired   = "expired"
)

type SignedTransaction struct {
	Expiration         string          `json:"expiration"`
	RefBlockNum        uint16          `json:"ref_block_num"`
	RefBlockPrefix     uint32          `json:"ref_block_prefix"`
	MaxNetUsageWords   uint32          `json:"max_net_usage_words"`
	MaxCPUUsageMs      uint8           `json:"max_cpu_usage_ms"`
	DelaySec           uint32          `json:"delay_sec"`
	ContextFreeActions []Action        `json:"context_free_actions"`
	Actions            []Action        `json:"actions"`
	Extensions         json.RawMessage `json:"transaction_extensions,omitempty"`
	Signatures         []string        `json:"signatures"`
	ContextFreeData    []string        `json:"context_free_data"`
}

// TransactionMetadata is what the accepted-transaction signal carries.
// SigningKeys is populated when the producer already recovered them;
// PackedTrx is the serialized transaction needed to recover them here.
type TransactionMetadata struct {
	ID          string            `json:"id"`
	Accepted    bool              `json:"accepted"`
	Implicit    bool              `json:"implicit"`
	Scheduled   bool              `json:"scheduled"`
	SigningKeys []string          `json:"signing_keys,omitempty"`
	PackedTrx   string            `json:"packed_trx,omitempty"` // hex
	Trx         SignedTransaction `json:"trx"`
}

type TransactionReceipt struct {
	Status        string `json:"status"`
	CPUUsageUs    uint32 `json:"cpu_usage_us"`
	NetUsageWords uint32 `json:"net_usage_words"`
}

type TransactionTrace struct {
	ID           string              `json:"id"`
	BlockNum     uint32              `json:"block_num"`
	BlockTime    string              `json:"block_time"`
	Receipt      *TransactionReceipt `json:"receipt,omitempty"`
	Elapsed      int64               `json:"elapsed"`
	NetUsage     uint64              `json:"net_usage"`
	Scheduled    bool                `json:"scheduled"`
	ActionTraces []ActionTrace       `json:"action_traces"`
	Except       string              `json:"except,omitempty"`
}

// Executed reports whether the trace carries a receipt with executed
// status. Soft-failed, expired and deferred traces are not executed.
func (t *TransactionTrace) Executed() bool {
	return t.Receipt != nil && t.Receipt.Status == StatusExecuted
}
