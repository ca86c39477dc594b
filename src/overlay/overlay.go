package overlay

import (
	"context"
	"runtime"

	"screenshot-native/src/gui"
	"screenshot-native/src/selection"
)

// Selector runs one blocking region-selection session.
// The returned result is either Cancelled or a committed rectangle.
type Selector interface {
	Select(ctx context.Context) (selection.Result, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context) (selection.Result, error)

func (f SelectorFunc) Select(ctx context.Context) (selection.Result, error) { return f(ctx) }

// NewSelector returns the native overlay selector.
func NewSelector() Selector { return nativeSelector{} }

type nativeSelector struct{}

// Select pins the calling goroutine to its OS thread for the lifetime of the
// overlay window, which must be pumped by the thread that created it.
func (nativeSelector) Select(ctx context.Context) (selection.Result, error) {
	if err := ctx.Err(); err != nil {
		return selection.Result{}, err
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return gui.StartRegionSelection()
}
