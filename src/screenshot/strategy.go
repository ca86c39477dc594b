package screenshot

import (
	"fmt"
	"image"
	"log"
	"time"

	"github.com/hashicorp/go-multierror"
)

// WindowSettleDelay is how long the screen-copy fallback waits after
// restoring a minimized window before copying its bounds.
var WindowSettleDelay = 200 * time.Millisecond

// strategy is one way of reading a window's pixels.
type strategy struct {
	name    string
	capture func() (*image.RGBA, error)
}

// runChain tries strategies in order and returns the first non-blank image.
func runChain(strategies []strategy) (*image.RGBA, error) {
	var errs *multierror.Error
	for _, s := range strategies {
		img, err := s.capture()
		if err == nil && isBlank(img) {
			err = fmt.Errorf("blank image")
		}
		if err != nil {
			log.Printf("Window capture strategy %s failed: %v", s.name, err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		log.Printf("Window captured with %s (%dx%d)", s.name, img.Bounds().Dx(), img.Bounds().Dy())
		return img, nil
	}
	if errs == nil {
		return nil, &CaptureError{Op: "capture window", Err: fmt.Errorf("no capture strategy available")}
	}
	return nil, &CaptureError{Op: "capture window", Err: errs.ErrorOrNil()}
}

// isBlank reports whether img has no area or only black or fully
// transparent pixels.
func isBlank(img *image.RGBA) bool {
	if img == nil || img.Bounds().Empty() {
		return true
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride : (y-b.Min.Y)*img.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			if row[i+3] != 0 && (row[i] != 0 || row[i+1] != 0 || row[i+2] != 0) {
				return false
			}
		}
	}
	return true
}
