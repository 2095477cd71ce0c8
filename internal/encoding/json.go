package encoding

import (
	jsoniter "github.com/json-iterator/go"
)

// JSONiter is the frozen configuration every document marshal goes
// through. UseNumber keeps decoded 64-bit chain values exact.
var JSONiter = jsoniter.Config{
	EscapeHTML:              false,
	MarshalFloatWith6Digits: false,
	DisallowUnknownFields:   false,
	OnlyTaggedField:         false,
	ValidateJsonRawMessage:  false,
	CaseSensitive:           true,
	UseNumber:               true,
	SortMapKeys:             false,
}.Froze()
