package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
)

var (
	// ErrCapture marks every failure to read pixels from the screen or a window.
	ErrCapture = errors.New("capture failed")
	// ErrInvalidRegion is returned for regions with no area.
	ErrInvalidRegion = errors.New("invalid region")
)

// CaptureError wraps a capture failure with the operation that failed.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("failed to %s: %v", e.Op, e.Err) }
func (e *CaptureError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCapture) hold for every CaptureError.
func (e *CaptureError) Is(target error) bool { return target == ErrCapture }

// Region represents a screen region to capture, in virtual-screen pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Validate rejects regions without area.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidRegion, r.Width, r.Height)
	}
	return nil
}

// VirtualBounds returns the union of all active display bounds. The origin
// may be negative when a monitor sits left of or above the primary one.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, &CaptureError{Op: "enumerate displays", Err: errors.New("no active displays found")}
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// Capture captures the entire virtual screen across all active displays.
func Capture() (*image.RGBA, error) {
	union, err := VirtualBounds()
	if err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(union)
	if err != nil {
		return nil, &CaptureError{Op: "capture screen", Err: err}
	}
	return img, nil
}

// CaptureFullScreen captures the virtual screen and encodes it as PNG.
func CaptureFullScreen() ([]byte, error) {
	img, err := Capture()
	if err != nil {
		return nil, err
	}
	return Encode(img)
}

// CaptureRegion captures a specific region of the screen as PNG.
func CaptureRegion(region Region) ([]byte, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}

	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, &CaptureError{Op: "capture region", Err: err}
	}
	return Encode(img)
}

// Encode converts an image to lossless PNG bytes, alpha preserved.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, &CaptureError{Op: "encode image as PNG", Err: err}
	}
	return buf.Bytes(), nil
}
