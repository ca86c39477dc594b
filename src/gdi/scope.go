// Package gdi owns short-lived GDI objects. Every handle acquired through a
// Scope is released, in reverse order, when the Scope is released.
package gdi

import "errors"

// ErrResource is returned when a GDI allocation fails.
var ErrResource = errors.New("gdi resource allocation failed")

// Scope collects release functions.
type Scope struct {
	releases []func()
	released bool
}

// NewScope returns an empty scope. Callers defer Release right away.
func NewScope() *Scope { return &Scope{} }

// Defer registers f to run on Release. After Release, f runs immediately.
func (s *Scope) Defer(f func()) {
	if s.released {
		f()
		return
	}
	s.releases = append(s.releases, f)
}

// Release runs the registered functions last-in first-out. It is safe to
// call more than once.
func (s *Scope) Release() {
	if s.released {
		return
	}
	s.released = true
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}
