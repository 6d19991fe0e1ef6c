// Package errors provides the error taxonomy shared by every cadview component.
//
// Each failure carries a Kind so callers can branch on what went wrong without
// matching message text:
//   - parse: selector syntax, malformed JSON bodies or frames
//   - not_found: missing node, file or route
//   - unknown_event: a frame names an event type that is not registered
//   - invalid_reference: a document operation names a node that does not exist
//   - io: file or socket failures
//   - timeout: a shutdown join exceeded its bound
//
// # Usage
//
//	err := errors.New(errors.KindParse, "dom.Query", "unterminated '['")
//	if errors.Is(err, errors.ErrParse) {
//	    // reject the selector
//	}
//
// Is compares kinds, so any *Error of KindParse matches ErrParse regardless of
// its operation or message. Wrap keeps the underlying cause reachable through
// Unwrap.
package errors
