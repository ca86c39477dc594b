package render

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"screenshot-native/src/screenshot"
)

const (
	MagnifierSize   = 150
	MagnifierZoom   = 4
	MagnifierOffset = 20
	InfoGap         = 5
	InfoHeight      = 35
	panelHeight     = MagnifierSize + InfoGap + InfoHeight
)

var (
	magnifierBorder = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	crosshairColor  = color.RGBA{R: 255, A: 255}
	infoBackground  = color.RGBA{A: 200}
)

// MagnifierOrigin returns the top-left corner of the magnifier panel for a
// pointer at p. The panel sits below-right of the pointer and flips to the
// other side when it would leave screen or cover avoid.
func MagnifierOrigin(p image.Point, screen, avoid image.Rectangle) image.Point {
	right := p.X+MagnifierOffset+MagnifierSize <= screen.Max.X
	below := p.Y+MagnifierOffset+panelHeight <= screen.Max.Y

	place := func(right, below bool) image.Rectangle {
		x := p.X + MagnifierOffset
		if !right {
			x = p.X - MagnifierOffset - MagnifierSize
		}
		y := p.Y + MagnifierOffset
		if !below {
			y = p.Y - MagnifierOffset - panelHeight
		}
		x = clampInt(x, screen.Min.X, screen.Max.X-MagnifierSize)
		y = clampInt(y, screen.Min.Y, screen.Max.Y-panelHeight)
		return image.Rect(x, y, x+MagnifierSize, y+panelHeight)
	}

	panel := place(right, below)
	if !avoid.Empty() && panel.Overlaps(avoid) {
		for _, alt := range []image.Rectangle{place(!right, below), place(right, !below), place(!right, !below)} {
			if !alt.Overlaps(avoid) {
				panel = alt
				break
			}
		}
	}
	return panel.Min
}

// drawMagnifier paints the zoom panel at local position at. The pointer is
// in virtual-screen coordinates.
func drawMagnifier(dst *image.RGBA, backdrop *screenshot.Backdrop, pointer, at image.Point) {
	src := image.NewRGBA(image.Rect(0, 0, MagnifierSize/MagnifierZoom, MagnifierSize/MagnifierZoom))
	half := MagnifierSize / (2 * MagnifierZoom)
	if backdrop != nil && backdrop.Image != nil {
		srcMin := pointer.Sub(image.Pt(half, half)).Sub(backdrop.Origin).Add(backdrop.Image.Bounds().Min)
		xdraw.Draw(src, src.Bounds(), backdrop.Image, srcMin, xdraw.Src)
	}

	panel := image.Rect(at.X, at.Y, at.X+MagnifierSize, at.Y+MagnifierSize)
	xdraw.NearestNeighbor.Scale(dst, panel, src, src.Bounds(), xdraw.Src, nil)

	fillRect(dst, image.Rect(panel.Min.X, panel.Min.Y, panel.Max.X, panel.Min.Y+2), magnifierBorder)
	fillRect(dst, image.Rect(panel.Min.X, panel.Max.Y-2, panel.Max.X, panel.Max.Y), magnifierBorder)
	fillRect(dst, image.Rect(panel.Min.X, panel.Min.Y, panel.Min.X+2, panel.Max.Y), magnifierBorder)
	fillRect(dst, image.Rect(panel.Max.X-2, panel.Min.Y, panel.Max.X, panel.Max.Y), magnifierBorder)

	cx := panel.Min.X + MagnifierSize/2
	cy := panel.Min.Y + MagnifierSize/2
	fillRect(dst, image.Rect(cx, panel.Min.Y+2, cx+1, panel.Max.Y-2), crosshairColor)
	fillRect(dst, image.Rect(panel.Min.X+2, cy, panel.Max.X-2, cy+1), crosshairColor)

	px := backdrop.PixelAt(pointer)
	info := image.Rect(panel.Min.X, panel.Max.Y+InfoGap, panel.Max.X, panel.Max.Y+InfoGap+InfoHeight)
	fillRect(dst, info, infoBackground)
	drawText(dst, image.Pt(info.Min.X+6, info.Min.Y+3), FormatRGB(px), labelColor)
	drawText(dst, image.Pt(info.Min.X+6, info.Min.Y+18), FormatHex(px), labelColor)
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
