package selection

import "image"

// Handle identifies the part of the selection under the pointer.
type Handle int

const (
	None Handle = iota
	TopLeft
	Top
	TopRight
	Right
	BottomRight
	Bottom
	BottomLeft
	Left
	Move
)

var handleNames = map[Handle]string{
	None:        "none",
	TopLeft:     "top-left",
	Top:         "top",
	TopRight:    "top-right",
	Right:       "right",
	BottomRight: "bottom-right",
	Bottom:      "bottom",
	BottomLeft:  "bottom-left",
	Left:        "left",
	Move:        "move",
}

func (h Handle) String() string {
	if s, ok := handleNames[h]; ok {
		return s
	}
	return "unknown"
}

// HandleSize is the side length of a resize handle square.
const HandleSize = 8

// ResizeHandles lists the eight resize handles in hit-test order.
var ResizeHandles = []Handle{TopLeft, Top, TopRight, Right, BottomRight, Bottom, BottomLeft, Left}

// HandleCenter returns the anchor point of a resize handle on r.
func HandleCenter(h Handle, r Rect) image.Point {
	midX := (r.Left + r.Right) / 2
	midY := (r.Top + r.Bottom) / 2
	switch h {
	case TopLeft:
		return image.Pt(r.Left, r.Top)
	case Top:
		return image.Pt(midX, r.Top)
	case TopRight:
		return image.Pt(r.Right, r.Top)
	case Right:
		return image.Pt(r.Right, midY)
	case BottomRight:
		return image.Pt(r.Right, r.Bottom)
	case Bottom:
		return image.Pt(midX, r.Bottom)
	case BottomLeft:
		return image.Pt(r.Left, r.Bottom)
	case Left:
		return image.Pt(r.Left, midY)
	}
	return image.Pt(midX, midY)
}

// HandleRect returns the square drawn and hit-tested for h.
func HandleRect(h Handle, r Rect) Rect {
	c := HandleCenter(h, r)
	half := HandleSize / 2
	return Rect{Left: c.X - half, Top: c.Y - half, Right: c.X + half, Bottom: c.Y + half}
}

// HitTest classifies p against r. Handles win over the interior; points
// outside both return None.
func HitTest(r Rect, p image.Point) Handle {
	if r.Empty() {
		return None
	}
	for _, h := range ResizeHandles {
		if HandleRect(h, r).Contains(p) {
			return h
		}
	}
	if r.Contains(p) {
		return Move
	}
	return None
}

// Drag computes the rectangle produced by dragging h from `from` to `to`,
// starting from the rectangle captured at button-down. None draws a new
// rectangle spanning both points. The result is normalized.
func Drag(h Handle, start Rect, from, to image.Point) Rect {
	dx := to.X - from.X
	dy := to.Y - from.Y
	r := start
	switch h {
	case None:
		return RectFromPoints(from, to)
	case Move:
		r = start.Offset(dx, dy)
	case TopLeft:
		r.Left += dx
		r.Top += dy
	case Top:
		r.Top += dy
	case TopRight:
		r.Right += dx
		r.Top += dy
	case Right:
		r.Right += dx
	case BottomRight:
		r.Right += dx
		r.Bottom += dy
	case Bottom:
		r.Bottom += dy
	case BottomLeft:
		r.Left += dx
		r.Bottom += dy
	case Left:
		r.Left += dx
	}
	return r.Normalize()
}

// Cursor is the pointer shape requested by the overlay.
type Cursor int

const (
	CursorCross Cursor = iota
	CursorArrow
	CursorSizeNWSE
	CursorSizeNESW
	CursorSizeNS
	CursorSizeWE
	CursorSizeAll
	CursorHand
)

// CursorFor maps a hit-test result to a pointer shape.
func CursorFor(h Handle) Cursor {
	switch h {
	case TopLeft, BottomRight:
		return CursorSizeNWSE
	case TopRight, BottomLeft:
		return CursorSizeNESW
	case Top, Bottom:
		return CursorSizeNS
	case Left, Right:
		return CursorSizeWE
	case Move:
		return CursorSizeAll
	}
	return CursorCross
}
