// Package channel defines the transport contract between the engine and
// the remote peer. Delivery is not guaranteed exactly-once or in-order
// across reconnects; consumers must be idempotent against duplicates.
package channel

import "encoding/json"

// Handler consumes one inbound event payload. Handlers for a connection
// are invoked sequentially from the read loop, so inbound events stay
// serialized in arrival order.
type Handler func(payload json.RawMessage)

// Adapter is the bidirectional event channel used by the engine.
type Adapter interface {
	// Emit sends one named outbound operation. Fire-and-forget: a nil
	// error means accepted for transmission, not delivered.
	Emit(event string, payload any) error
	// On subscribes a handler for a named inbound event.
	On(event string, h Handler)
}

// Envelope is the wire format carried over the websocket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
