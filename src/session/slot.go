package session

import (
	"sync"

	"screenshot-native/src/selection"
)

// Slot hands one selection result from the overlay thread to a poller.
// Writers take the exclusive lock; readers check under the shared lock and
// only upgrade when there is something to consume.
type Slot struct {
	mu     sync.RWMutex
	result *selection.Result
}

// Post stores r, replacing any result nobody collected.
func (s *Slot) Post(r selection.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = &r
}

// Take returns the stored result and clears it. The second call after one
// Post reports false.
func (s *Slot) Take() (selection.Result, bool) {
	s.mu.RLock()
	pending := s.result != nil
	s.mu.RUnlock()
	if !pending {
		return selection.Result{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return selection.Result{}, false
	}
	r := *s.result
	s.result = nil
	return r, true
}

// Reset drops any uncollected result.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = nil
}
