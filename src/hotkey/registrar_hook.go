//go:build !windows

package hotkey

import (
	"log"
	"sync"

	gohook "github.com/robotn/gohook"
)

// hookRegistrar matches raw key events from a global gohook listener
// against the registered shortcuts. Rawcodes follow the Windows virtual key
// table, so matching is best effort on other systems.
type hookRegistrar struct {
	mu       sync.Mutex
	bindings map[int][][]uint16
	pressed  map[uint16]bool
	events   chan int
	quit     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// NewRegistrar starts the global keyboard hook.
func NewRegistrar() (Registrar, error) {
	r := &hookRegistrar{
		bindings: make(map[int][][]uint16),
		pressed:  make(map[uint16]bool),
		events:   make(chan int, 8),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	evChan := gohook.Start()
	go r.listen(evChan)
	return r, nil
}

func (r *hookRegistrar) listen(evChan chan gohook.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC in hotkey hook goroutine: %v", rec)
		}
		close(r.events)
		close(r.stopped)
	}()
	for {
		var ev gohook.Event
		select {
		case <-r.quit:
			return
		case e, ok := <-evChan:
			if !ok {
				log.Printf("Hotkey hook channel closed")
				return
			}
			ev = e
		}
		switch ev.Kind {
		case gohook.KeyDown:
			for _, id := range r.keyDown(ev.Rawcode) {
				select {
				case r.events <- id:
				default:
					log.Printf("Hotkey event 0x%X dropped, consumer busy", id)
				}
			}
		case gohook.KeyUp:
			r.mu.Lock()
			delete(r.pressed, ev.Rawcode)
			r.mu.Unlock()
		}
	}
}

// keyDown records the key and returns every binding it completes.
func (r *hookRegistrar) keyDown(code uint16) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pressed[code] = true
	var fired []int
	for id, groups := range r.bindings {
		if satisfied(groups, r.pressed) && containsCode(groups[len(groups)-1], code) {
			fired = append(fired, id)
		}
	}
	return fired
}

func satisfied(groups [][]uint16, pressed map[uint16]bool) bool {
	for _, g := range groups {
		held := false
		for _, c := range g {
			if pressed[c] {
				held = true
				break
			}
		}
		if !held {
			return false
		}
	}
	return true
}

func containsCode(group []uint16, code uint16) bool {
	for _, c := range group {
		if c == code {
			return true
		}
	}
	return false
}

func (r *hookRegistrar) Register(id int, s Shortcut) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[id] = s.Rawcodes()
	return nil
}

// Unregister stops matching id; the hook itself keeps running.
func (r *hookRegistrar) Unregister(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, id)
	return nil
}

func (r *hookRegistrar) Events() <-chan int { return r.events }

func (r *hookRegistrar) Close() error {
	r.once.Do(func() {
		gohook.End()
		close(r.quit)
		<-r.stopped
	})
	return nil
}
