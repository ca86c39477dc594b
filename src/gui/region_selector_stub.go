//go:build !windows

package gui

import (
	"errors"
	"fmt"

	"screenshot-native/src/selection"
)

// StartInteractiveRegionSelection is not available off Windows.
func StartInteractiveRegionSelection() (selection.Result, error) {
	return selection.CancelledResult(), fmt.Errorf("%w: %w", ErrStartup, errors.ErrUnsupported)
}
