package bridge

import (
	"context"
	"encoding/json"
)

// Outbox is the push side of a connection, handed to each Factory.
type Outbox interface {
	// ID returns the connection's stable identifier.
	ID() string

	// Push encodes data as {"eid": eid, "data": data} and queues it for
	// the client. It never blocks; ErrQueueFull and ErrConnClosed report
	// a connection that can no longer be written.
	Push(eid string, data any) error
}

// EventChannel is the per-connection instance of a Kind.
type EventChannel interface {
	// Send pushes payload to the client.
	Send(payload any) error

	// Receive handles an inbound frame for this kind. frame is the full
	// JSON object, eid included. A nil result sends nothing back.
	Receive(ctx context.Context, frame json.RawMessage) (any, error)
}

// Opener is implemented by channels that act when their connection is
// registered, after every channel of the connection has been built.
type Opener interface {
	Open(ctx context.Context) error
}

// Factory builds one EventChannel for a new connection.
type Factory func(out Outbox) EventChannel

// Kind is a registered event type.
type Kind struct {
	// Name is the eid value routed to this kind.
	Name string

	// New builds the channel for each connection.
	New Factory
}

// BaseChannel pushes under a fixed eid and ignores inbound frames. Embed it
// to build channels that only override Receive or Open.
type BaseChannel struct {
	EID string
	Out Outbox
}

// Send implements EventChannel.
func (c *BaseChannel) Send(payload any) error {
	return c.Out.Push(c.EID, payload)
}

// Receive implements EventChannel.
func (c *BaseChannel) Receive(context.Context, json.RawMessage) (any, error) {
	return nil, nil
}
