package selection

const (
	ButtonWidth  = 80
	ButtonHeight = 30
	ButtonMargin = 10
)

// Toolbar holds the confirm and cancel button rectangles.
type Toolbar struct {
	Confirm Rect
	Cancel  Rect
}

// Bounds returns the rectangle covering both buttons.
func (t Toolbar) Bounds() Rect {
	return Rect{Left: t.Confirm.Left, Top: t.Confirm.Top, Right: t.Cancel.Right, Bottom: t.Cancel.Bottom}
}

// LayoutToolbar places the buttons just past the bottom-right corner of sel,
// cancel directly right of confirm. When the pair would leave screen it is
// flipped to the other side of the corner and then clamped into screen.
func LayoutToolbar(sel, screen Rect) Toolbar {
	width := 2 * ButtonWidth
	left := sel.Right + ButtonMargin
	top := sel.Bottom + ButtonMargin

	if !screen.Empty() {
		if left+width > screen.Right {
			left = sel.Right - width
		}
		if top+ButtonHeight > screen.Bottom {
			top = sel.Top - ButtonMargin - ButtonHeight
			if top < screen.Top {
				top = sel.Bottom - ButtonMargin - ButtonHeight
			}
		}
		left = clamp(left, screen.Left, screen.Right-width)
		top = clamp(top, screen.Top, screen.Bottom-ButtonHeight)
	}

	confirm := Rect{Left: left, Top: top, Right: left + ButtonWidth, Bottom: top + ButtonHeight}
	cancel := Rect{Left: confirm.Right, Top: top, Right: confirm.Right + ButtonWidth, Bottom: top + ButtonHeight}
	return Toolbar{Confirm: confirm, Cancel: cancel}
}

func clamp(v, lo, hi int) int {
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
