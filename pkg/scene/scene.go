// Package scene retains ingested geometry payloads so that a browser that
// connects after the host pushed its shapes still receives them.
package scene

import (
	"encoding/json"
	"sync"
)

// Store is a bounded, ordered, thread-safe list of geometry payloads. When
// full, the oldest payload is evicted.
type Store struct {
	mu     sync.Mutex
	max    int
	shapes []json.RawMessage
}

// New returns a Store holding at most max payloads. A max of 0 or less
// disables retention: Add is a no-op and Snapshot is always empty.
func New(max int) *Store {
	if max < 0 {
		max = 0
	}
	return &Store{max: max}
}

// Add retains a copy of payload and reports whether an older payload was
// evicted to make room.
func (s *Store) Add(payload json.RawMessage) (evicted bool) {
	if s.max == 0 {
		return false
	}
	cp := make(json.RawMessage, len(payload))
	copy(cp, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.shapes) >= s.max {
		// Shift in place; the backing array stays at max.
		n := copy(s.shapes, s.shapes[1:])
		s.shapes[n] = nil
		s.shapes = s.shapes[:n]
		evicted = true
	}
	s.shapes = append(s.shapes, cp)
	return evicted
}

// Snapshot returns the retained payloads, oldest first. The slice is owned by
// the caller; the payloads must not be modified.
func (s *Store) Snapshot() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]json.RawMessage, len(s.shapes))
	copy(out, s.shapes)
	return out
}

// Len returns the number of retained payloads.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shapes)
}

// Cap returns the retention bound.
func (s *Store) Cap() int {
	return s.max
}

// Clear drops every retained payload.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shapes = nil
}
