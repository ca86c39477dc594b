// Package render composes overlay frames in memory. The overlay host blits
// each finished frame to the window in one copy.
package render

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"screenshot-native/src/screenshot"
	"screenshot-native/src/selection"
)

const (
	DimAlpha     = 160
	solidWidth   = 3
	dottedWidth  = 2
	dottedDash   = 6
	dottedGap    = 4
	labelOffsetY = 5
	confirmLabel = "OK"
	cancelLabel  = "Cancel"
)

var (
	outlineColor = color.RGBA{R: 255, A: 255}
	handleColor  = color.RGBA{R: 255, A: 255}
	labelColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	confirmColor = color.RGBA{R: 0, G: 120, B: 215, A: 255}
	confirmHover = color.RGBA{R: 30, G: 144, B: 255, A: 255}
	cancelColor  = color.RGBA{R: 220, G: 53, B: 69, A: 255}
	cancelHover  = color.RGBA{R: 255, G: 82, B: 95, A: 255}
	dimColor     = color.RGBA{A: DimAlpha}
)

// Renderer paints frames over one backdrop. The frame buffer is reused
// between calls, so a returned image is only valid until the next Render.
type Renderer struct {
	backdrop *screenshot.Backdrop
	frame    *image.RGBA
}

// New returns a renderer for backdrop.
func New(backdrop *screenshot.Backdrop) *Renderer {
	size := backdrop.Bounds().Size()
	return &Renderer{
		backdrop: backdrop,
		frame:    image.NewRGBA(image.Rectangle{Max: size}),
	}
}

// Render draws s, back to front: backdrop, dim mask, outline, handles and
// size label, toolbar, magnifier.
func (r *Renderer) Render(s selection.Snapshot) *image.RGBA {
	dst := r.frame
	origin := r.backdrop.Origin
	if r.backdrop.Image != nil {
		xdraw.Draw(dst, dst.Bounds(), r.backdrop.Image, r.backdrop.Image.Bounds().Min, xdraw.Src)
	}

	showSelection := !(s.State == selection.Idle && !s.Dragging) && !s.Rect.Empty()
	local := s.Rect.Image().Sub(origin)

	if showSelection {
		dimOutside(dst, local)
	} else {
		dimOutside(dst, image.Rectangle{})
	}

	if showSelection {
		if s.State == selection.Hovering && !s.Dragging {
			strokeRect(dst, local, dottedWidth, true)
		} else {
			strokeRect(dst, local, solidWidth, false)
		}
	}

	if showSelection && s.State == selection.Selected {
		for _, h := range selection.ResizeHandles {
			fillEllipse(dst, selection.HandleRect(h, s.Rect).Image().Sub(origin), handleColor)
		}
		drawSizeLabel(dst, local, s.Rect.Width(), s.Rect.Height())
		drawToolbar(dst, s, origin)
	}

	if s.PointerValid && s.Pointer.In(s.Screen.Image()) {
		var avoid image.Rectangle
		if s.State == selection.Selected && !s.Dragging {
			avoid = s.Toolbar.Bounds().Image()
		}
		at := MagnifierOrigin(s.Pointer, s.Screen.Image(), avoid)
		drawMagnifier(dst, r.backdrop, s.Pointer, at.Sub(origin))
	}
	return dst
}

// dimOutside darkens everything except keep.
func dimOutside(dst *image.RGBA, keep image.Rectangle) {
	b := dst.Bounds()
	keep = keep.Intersect(b)
	src := image.NewUniform(dimColor)
	if keep.Empty() {
		xdraw.Draw(dst, b, src, image.Point{}, xdraw.Over)
		return
	}
	bands := []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, keep.Min.Y),
		image.Rect(b.Min.X, keep.Max.Y, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, keep.Min.Y, keep.Min.X, keep.Max.Y),
		image.Rect(keep.Max.X, keep.Min.Y, b.Max.X, keep.Max.Y),
	}
	for _, band := range bands {
		if !band.Empty() {
			xdraw.Draw(dst, band, src, image.Point{}, xdraw.Over)
		}
	}
}

// strokeRect draws a rectangle outline of width w centered on r's edges.
func strokeRect(dst *image.RGBA, r image.Rectangle, w int, dotted bool) {
	inner := w / 2
	outer := w - inner
	top := image.Rect(r.Min.X-outer, r.Min.Y-outer, r.Max.X+outer, r.Min.Y+inner)
	bottom := image.Rect(r.Min.X-outer, r.Max.Y-inner, r.Max.X+outer, r.Max.Y+outer)
	left := image.Rect(r.Min.X-outer, r.Min.Y-outer, r.Min.X+inner, r.Max.Y+outer)
	right := image.Rect(r.Max.X-inner, r.Min.Y-outer, r.Max.X+outer, r.Max.Y+outer)

	if !dotted {
		for _, band := range []image.Rectangle{top, bottom, left, right} {
			fillRect(dst, band, outlineColor)
		}
		return
	}
	period := dottedDash + dottedGap
	for x := top.Min.X; x < top.Max.X; x += period {
		end := min(x+dottedDash, top.Max.X)
		fillRect(dst, image.Rect(x, top.Min.Y, end, top.Max.Y), outlineColor)
		fillRect(dst, image.Rect(x, bottom.Min.Y, end, bottom.Max.Y), outlineColor)
	}
	for y := left.Min.Y; y < left.Max.Y; y += period {
		end := min(y+dottedDash, left.Max.Y)
		fillRect(dst, image.Rect(left.Min.X, y, left.Max.X, end), outlineColor)
		fillRect(dst, image.Rect(right.Min.X, y, right.Max.X, end), outlineColor)
	}
}

func fillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	op := xdraw.Src
	if c.A != 0xff {
		op = xdraw.Over
	}
	xdraw.Draw(dst, r, image.NewUniform(c), image.Point{}, op)
}

// fillEllipse fills the ellipse inscribed in r.
func fillEllipse(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	cx2 := r.Min.X + r.Max.X
	cy2 := r.Min.Y + r.Max.Y
	rx := r.Dx()
	ry := r.Dy()
	if rx <= 0 || ry <= 0 {
		return
	}
	clip := r.Intersect(dst.Bounds())
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			// Pixel centers in doubled coordinates avoid fractions.
			dx := 2*x + 1 - cx2
			dy := 2*y + 1 - cy2
			if dx*dx*ry*ry+dy*dy*rx*rx <= rx*rx*ry*ry {
				dst.SetRGBA(x, y, c)
			}
		}
	}
}
