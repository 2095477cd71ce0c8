package chain

// Well-known names on the system account.
var (
	SystemAccount  = "eosio"
	NewAccountName = "newaccount"
	SetAbiName     = "setabi"
	UpdateAuthName = "updateauth"
	DeleteAuthName = "deleteauth"

	OwnerPermission  = "owner"
	ActivePermission = "active"
)

type PermissionLevel struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

type Action struct {
	Account       string            `json:"account"`
	Name          string            `json:"name"`
	Authorization []PermissionLevel `json:"authorization"`
	Data          string            `json:"data"` // Hex-encoded action data
}

type ActionReceipt struct {
	Receiver       string          `json:"receiver"`
	ActDigest      string          `json:"act_digest"`
	GlobalSequence uint64          `json:"global_sequence"`
	RecvSequence   uint64          `json:"recv_sequence"`
	AuthSequence   [][]interface{} `json:"auth_sequence"`
	CodeSequence   uint32          `json:"code_sequence"`
	AbiSequence    uint32          `json:"abi_sequence"`
}

type ActionTrace struct {
	Receipt      *ActionReceipt `json:"receipt,omitempty"`
	Act          Action         `json:"act"`
	ContextFree  bool           `json:"context_free"`
	Elapsed      int64          `json:"elapsed"`
	Console      string         `json:"console,omitempty"`
	TrxID        string         `json:"trx_id"`
	InlineTraces []ActionTrace  `json:"inline_traces,omitempty"`
}

// Receiver returns the account the action ran on, falling back to the
// target account when the receipt is absent.
func (at *ActionTrace) Receiver() string {
	if at.Receipt != nil && at.Receipt.Receiver != "" {
		return at.Receipt.Receiver
	}
	return at.Act.Account
}
