package elastic

import (
	"bytes"
	"fmt"
)

// BulkRequest accumulates index operations for one physical index in
// the backend's newline-delimited bulk format.
type BulkRequest struct {
	buf   bytes.Buffer
	count int
}

func NewBulkRequest() *BulkRequest {
	return &BulkRequest{}
}

func (b *BulkRequest) Index(collection string, id string, doc string) error {
	tagged, err := withDocType(collection, doc)
	if err != nil {
		return fmt.Errorf("tag document: %w", err)
	}

	if id == "" {
		b.buf.WriteString(`{"index":{}}`)
	} else {
		fmt.Fprintf(&b.buf, `{"index":{"_id":%q}}`, id)
	}
	b.buf.WriteByte('\n')
	b.buf.WriteString(tagged)
	b.buf.WriteByte('\n')
	b.count++
	return nil
}

func (b *BulkRequest) Empty() bool { return b.count == 0 }

func (b *BulkRequest) Len() int { return b.count }

func (b *BulkRequest) Body() string { return b.buf.String() }
