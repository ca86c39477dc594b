//go:build !windows

package screenshot

import "errors"

// CaptureWindow is only available on Windows.
func CaptureWindow(hwnd uintptr) ([]byte, error) {
	return nil, &CaptureError{Op: "capture window", Err: errors.ErrUnsupported}
}
