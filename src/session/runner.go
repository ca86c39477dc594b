package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"screenshot-native/src/overlay"
	"screenshot-native/src/selection"
)

// ErrBusy is returned when a selection session is already on screen.
var ErrBusy = errors.New("selection session already running")

// NotifyFunc receives the outcome of every asynchronous session. err is set
// when the overlay failed to start; r is then zero.
type NotifyFunc func(r selection.Result, err error)

// Runner starts overlay sessions on their own goroutine and posts results
// to a Slot.
type Runner struct {
	selector overlay.Selector
	slot     *Slot
	notify   NotifyFunc

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner. notify may be nil.
func NewRunner(sel overlay.Selector, slot *Slot, notify NotifyFunc) *Runner {
	return &Runner{selector: sel, slot: slot, notify: notify}
}

// Slot returns the result slot the runner posts to.
func (r *Runner) Slot() *Slot { return r.slot }

// Running reports whether a session is on screen.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches a session and returns immediately. Any stale result in the
// slot is dropped so the next poll reflects this session.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrBusy
	}
	r.running = true
	r.mu.Unlock()

	r.slot.Reset()
	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

// Run executes a session on the calling goroutine and returns its result.
// It shares the busy flag with Start but does not touch the slot.
func (r *Runner) Run(ctx context.Context) (selection.Result, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return selection.Result{}, ErrBusy
	}
	r.running = true
	r.mu.Unlock()
	defer r.done()

	return r.selector.Select(ctx)
}

func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	res, err := r.selectSafely(ctx)
	r.done()
	if err != nil {
		log.Printf("Selection session failed: %v", err)
		r.slot.Post(selection.CancelledResult())
		r.emit(selection.Result{}, err)
		return
	}
	if res.Cancelled {
		log.Printf("Selection session cancelled")
	} else {
		log.Printf("Selection session confirmed: %dx%d at (%d,%d)", res.Width, res.Height, res.X, res.Y)
	}
	r.slot.Post(res)
	r.emit(res, nil)
}

func (r *Runner) selectSafely(ctx context.Context) (res selection.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("selection session panicked: %v", rec)
		}
	}()
	return r.selector.Select(ctx)
}

func (r *Runner) done() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

func (r *Runner) emit(res selection.Result, err error) {
	if r.notify != nil {
		r.notify(res, err)
	}
}

// Wait blocks until every session started with Start has finished.
func (r *Runner) Wait() { r.wg.Wait() }
