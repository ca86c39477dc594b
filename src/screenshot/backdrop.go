package screenshot

import (
	"image"
	"image/color"
	"log"

	"github.com/kbinani/screenshot"
)

// Backdrop is the frozen desktop image an overlay session paints on. It is
// captured before the overlay window exists so the overlay never sees itself.
type Backdrop struct {
	Image  *image.RGBA
	Origin image.Point
}

// CaptureDesktopBackdrop grabs the whole virtual screen.
func CaptureDesktopBackdrop() (*Backdrop, error) {
	bounds, err := VirtualBounds()
	if err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, &CaptureError{Op: "capture desktop backdrop", Err: err}
	}
	if got := img.Bounds().Size(); got != bounds.Size() {
		log.Printf("OVERLAY: backdrop size %v differs from virtual screen %v", got, bounds.Size())
	}
	return &Backdrop{Image: img, Origin: bounds.Min}, nil
}

// Bounds returns the backdrop area in virtual-screen coordinates.
func (b *Backdrop) Bounds() image.Rectangle {
	if b == nil || b.Image == nil {
		return image.Rectangle{}
	}
	return b.Image.Bounds().Sub(b.Image.Bounds().Min).Add(b.Origin)
}

// PixelAt returns the pixel at a virtual-screen point, or the zero color
// outside the backdrop.
func (b *Backdrop) PixelAt(p image.Point) color.RGBA {
	if b == nil || b.Image == nil {
		return color.RGBA{}
	}
	local := p.Sub(b.Origin).Add(b.Image.Bounds().Min)
	if !local.In(b.Image.Bounds()) {
		return color.RGBA{}
	}
	return b.Image.RGBAAt(local.X, local.Y)
}

// Release drops the pixel buffer at the end of a session.
func (b *Backdrop) Release() {
	if b != nil {
		b.Image = nil
	}
}
