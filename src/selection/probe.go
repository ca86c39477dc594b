package selection

import "image"

// Prober finds the bounds of the window under a point.
type Prober interface {
	WindowAt(p image.Point) (Rect, bool)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(p image.Point) (Rect, bool)

func (f ProberFunc) WindowAt(p image.Point) (Rect, bool) { return f(p) }

const (
	MinProbeWidth  = 50
	MinProbeHeight = 50
)

// Stack is a list of window bounds ordered topmost first.
type Stack []Rect

// WindowAt returns the topmost window containing p, ignoring windows
// smaller than MinProbeWidth x MinProbeHeight.
func (s Stack) WindowAt(p image.Point) (Rect, bool) {
	for _, r := range s {
		r = r.Normalize()
		if r.Width() < MinProbeWidth || r.Height() < MinProbeHeight {
			continue
		}
		if r.Contains(p) {
			return r, true
		}
	}
	return Rect{}, false
}
