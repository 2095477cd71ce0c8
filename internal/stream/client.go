package stream

import (
	"context"
	"encoding/json"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/logger"
)

// Sink receives the four chain signals. Implementations must not block
// the read loop longer than their own backpressure policy allows.
type Sink interface {
	AcceptedTransaction(*chain.TransactionMetadata)
	AppliedTransaction(*chain.TransactionTrace)
	AcceptedBlock(*chain.BlockState)
	IrreversibleBlock(*chain.BlockState)
}

type subscribeMessage struct {
	Type    string   `json:"type"`
	Streams []string `json:"streams"`
}

type eventFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var allStreams = []string{
	"accepted_transaction",
	"applied_transaction",
	"accepted_block",
	"irreversible_block",
}

// Client subscribes to a node event relay over websocket and feeds the
// sink. It reconnects with capped backoff until the context ends.
type Client struct {
	url  string
	sink Sink
}

func NewClient(url string, sink Sink) *Client {
	return &Client{url: url, sink: sink}
}

func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		delay := time.Duration(1<<uint(min(attempt-1, 5))) * time.Second
		logger.Printf("stream", "relay connection lost (%v), reconnecting in %v", err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Block payloads can be large.
	conn.SetReadLimit(64 << 20)

	sub := subscribeMessage{Type: "subscribe", Streams: allStreams}
	if err := wsjson.Write(ctx, conn, sub); err != nil {
		return err
	}
	logger.Printf("stream", "subscribed to %s", c.url)

	for {
		var frame eventFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}
		c.dispatch(&frame)
	}
}

// dispatch decodes one frame and hands it to the sink. A malformed
// frame is logged and dropped, never propagated to the relay.
func (c *Client) dispatch(frame *eventFrame) {
	switch frame.Type {
	case "accepted_transaction":
		var t chain.TransactionMetadata
		if err := json.Unmarshal(frame.Payload, &t); err != nil {
			logger.Error("malformed accepted_transaction frame: %v", err)
			return
		}
		c.sink.AcceptedTransaction(&t)

	case "applied_transaction":
		var t chain.TransactionTrace
		if err := json.Unmarshal(frame.Payload, &t); err != nil {
			logger.Error("malformed applied_transaction frame: %v", err)
			return
		}
		c.sink.AppliedTransaction(&t)

	case "accepted_block":
		var bs chain.BlockState
		if err := json.Unmarshal(frame.Payload, &bs); err != nil {
			logger.Error("malformed accepted_block frame: %v", err)
			return
		}
		c.sink.AcceptedBlock(&bs)

	case "irreversible_block":
		var bs chain.BlockState
		if err := json.Unmarshal(frame.Payload, &bs); err != nil {
			logger.Error("malformed irreversible_block frame: %v", err)
			return
		}
		c.sink.IrreversibleBlock(&bs)

	case "heartbeat":

	default:
		logger.Printf("debug", "ignoring unknown frame type %q", frame.Type)
	}
}
