package bridge

import "errors"

// Sentinel errors for bridge operations.
var (
	// ErrClosed is returned when the loop is not running, either because
	// Run has not started yet or because it has returned.
	ErrClosed = errors.New("bridge: closed")

	// ErrServing is returned by Register once Run has started.
	ErrServing = errors.New("bridge: already serving")

	// ErrDuplicateKind is returned by Register for a name already in use.
	ErrDuplicateKind = errors.New("bridge: duplicate kind")

	// ErrQueueFull is returned by a push when the connection's outbound
	// queue is full. The loop closes such connections.
	ErrQueueFull = errors.New("bridge: send queue full")

	// ErrConnClosed is returned by a push to a connection that has closed.
	ErrConnClosed = errors.New("bridge: connection closed")

	// ErrNotListening is returned by Serve when Listen has not bound.
	ErrNotListening = errors.New("bridge: not listening")
)
