//go:build !windows

package windowlist

import (
	"errors"
	"image"
)

// ListCapturableWindows is only available on Windows.
func ListCapturableWindows() ([]Descriptor, error) {
	return nil, errors.ErrUnsupported
}

// ZOrderBounds is only available on Windows.
func ZOrderBounds(exclude uintptr) []image.Rectangle { return nil }
