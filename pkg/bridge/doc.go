// Package bridge implements the WebSocket event bridge between the host
// process and browser clients.
//
// A Bridge owns a registry of live connections. Every connection gets one
// EventChannel per registered Kind, built by that Kind's Factory when the
// connection is first seen. Inbound frames are JSON objects carrying an
// "eid" naming the kind:
//
//	{"eid": "ThreeShapeClick", "id": "face-12"}
//
// The frame is handed to the channel's Receive; a non-nil result is echoed
// back as {"eid": ..., "data": ...}. Malformed frames and unknown kinds are
// answered with {"type": "error", "message": ...} and the connection stays
// open.
//
// # Concurrency
//
// Run is a single cooperative loop and the only goroutine that touches the
// registry. Each socket has one reader goroutine, which hands frames to the
// loop in arrival order, and one writer goroutine draining a bounded
// outbound queue. Send and Broadcast may be called from any goroutine; they
// hand the push to the loop and wait for its result.
//
// Send delivers to a single connection, the earliest registered one that is
// still live. Use Broadcast to reach every connection.
//
// Listen binds the address and starts the loop, so pushes are accepted as
// soon as it returns; Serve only accepts sockets. Run drives the loop for
// callers that mount Handler on their own server.
//
// # Usage
//
//	b := bridge.New(bridge.DefaultConfig(), logger)
//	b.Register(bridge.LoadShape(store))
//	b.Register(bridge.ShapeClick(handler))
//
//	if err := b.Listen(); err != nil {
//	    return err
//	}
//	go b.Serve()
//	defer b.Shutdown(ctx)
//
//	delivered, err := b.Send(ctx, bridge.KindLoadShape, payload)
package bridge
