package chain

import "encoding/json"

type BlockTransactionReceipt struct {
	Status        string          `json:"status"`
	CPUUsageUs    uint32          `json:"cpu_usage_us"`
	NetUsageWords uint32          `json:"net_usage_words"`
	Trx           json.RawMessage `json:"trx"` // id string or packed transaction object
}

type SignedBlock struct {
	Timestamp        string                    `json:"timestamp"`
	Producer         string                    `json:"producer"`
	Confirmed        uint16                    `json:"confirmed"`
	Previous         string                    `json:"previous"`
	TransactionMroot string                    `json:"transaction_mroot"`
	ActionMroot      string                    `json:"action_mroot"`
	ScheduleVersion  uint32                    `json:"schedule_version"`
	ProducerSig      string                    `json:"producer_signature"`
	Transactions     []BlockTransactionReceipt `json:"transactions"`
	Extensions       json.RawMessage           `json:"block_extensions,omitempty"`
}

// BlockState is the accepted-block signal payload: the block plus the
// validation metadata the controller attached to it. HeaderState keeps
// the raw header state blob for the block_states audit document.
type BlockState struct {
	BlockNum       uint32          `json:"block_num"`
	ID             string          `json:"id"`
	Validated      bool            `json:"validated"`
	InCurrentChain bool            `json:"in_current_chain"`
	Block          *SignedBlock    `json:"block,omitempty"`
	HeaderState    json.RawMessage `json:"header_state,omitempty"`
}
