package render

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"screenshot-native/src/selection"
)

var face = basicfont.Face7x13

// SizeLabel formats the selection size shown under the rectangle.
func SizeLabel(width, height int) string {
	return fmt.Sprintf("%d x %d", width, height)
}

// FormatRGB formats a pixel for the magnifier readout.
func FormatRGB(c color.RGBA) string {
	return fmt.Sprintf("RGB(%d, %d, %d)", c.R, c.G, c.B)
}

// FormatHex formats a pixel as #RRGGBB.
func FormatHex(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// drawText draws s with its top-left corner at p.
func drawText(dst *image.RGBA, p image.Point, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(p.X, p.Y+face.Ascent),
	}
	d.DrawString(s)
}

// drawCenteredText centers s inside r.
func drawCenteredText(dst *image.RGBA, r image.Rectangle, s string, c color.RGBA) {
	x := r.Min.X + (r.Dx()-textWidth(s))/2
	y := r.Min.Y + (r.Dy()-face.Height)/2
	drawText(dst, image.Pt(x, y), s, c)
}

func drawSizeLabel(dst *image.RGBA, sel image.Rectangle, width, height int) {
	drawText(dst, image.Pt(sel.Min.X, sel.Max.Y+labelOffsetY), SizeLabel(width, height), labelColor)
}

func drawToolbar(dst *image.RGBA, s selection.Snapshot, origin image.Point) {
	confirm := s.Toolbar.Confirm.Image().Sub(origin)
	cancel := s.Toolbar.Cancel.Image().Sub(origin)

	fill := confirmColor
	if s.HoverConfirm {
		fill = confirmHover
	}
	fillRect(dst, confirm, fill)
	drawCenteredText(dst, confirm, confirmLabel, labelColor)

	fill = cancelColor
	if s.HoverCancel {
		fill = cancelHover
	}
	fillRect(dst, cancel, fill)
	drawCenteredText(dst, cancel, cancelLabel, labelColor)
}
