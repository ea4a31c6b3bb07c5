package transport

import (
	"context"
	"encoding/json"
)

// Packet is the wire envelope framing every message on the duplex channel,
// in both directions.
//
// A packet is either an event (Event non-empty) or an acknowledgment (Ack
// non-zero). An event carrying a non-zero Seq requests an acknowledgment;
// the peer answers with a packet whose Ack echoes that Seq, whose OK carries
// the outcome, and whose Data carries the response payload, if any.
type Packet struct {
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Seq   int64           `json:"seq,omitempty"`
	Ack   int64           `json:"ack,omitempty"`
	OK    bool            `json:"ok,omitempty"`
}

// ResponseFunc receives the acknowledgment for a single emitted message. The
// channel invokes it exactly once: with the peer's outcome and response
// payload, or with ok=false and a nil payload if the connection drops before
// the peer answers.
type ResponseFunc func(ok bool, payload []byte)

// AckFunc acknowledges a single inbound event. It is one-shot: the first
// invocation answers the peer, later invocations are no-ops.
type AckFunc func(ok bool)

// EventFunc handles one inbound event. The ack is never nil; if the peer did
// not request an acknowledgment it is a no-op.
type EventFunc func(payload []byte, ack AckFunc)

// Socket is a duplex, acknowledgment-based message channel.
type Socket interface {
	// Connect establishes the channel. At most one attempt is in flight at
	// a time; connecting an already-connected socket is a no-op.
	Connect(ctx context.Context) error

	// Connected reports whether the channel is currently established.
	Connected() bool

	// Emit sends payload under the named event. If reply is non-nil the
	// emit requests an acknowledgment and reply is invoked exactly once
	// with the outcome. Emitting on a disconnected socket fails.
	Emit(ctx context.Context, event string, payload []byte, reply ResponseFunc) error

	// On subscribes fn to the named event, replacing any prior handler.
	// Subscriptions are torn down when the connection drops.
	On(event string, fn EventFunc)

	// Close tears the channel down. Pending replies are released with
	// ok=false. Closing a disconnected socket is a no-op.
	Close(reason string) error
}
