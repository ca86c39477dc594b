package selection

import "image"

// Rect is a selection rectangle in virtual-screen pixels. Right and Bottom
// are exclusive edges, so Width is Right-Left.
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// RectFromPoints returns the bounding box of two points.
func RectFromPoints(a, b image.Point) Rect {
	return Rect{Left: a.X, Top: a.Y, Right: b.X, Bottom: b.Y}.Normalize()
}

// FromImage converts an image.Rectangle.
func FromImage(r image.Rectangle) Rect {
	return Rect{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}.Normalize()
}

// Normalize swaps edges so that Left <= Right and Top <= Bottom.
func (r Rect) Normalize() Rect {
	if r.Left > r.Right {
		r.Left, r.Right = r.Right, r.Left
	}
	if r.Top > r.Bottom {
		r.Top, r.Bottom = r.Bottom, r.Top
	}
	return r
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p image.Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// Offset moves the rectangle by (dx, dy).
func (r Rect) Offset(dx, dy int) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// Image returns the rectangle as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}
