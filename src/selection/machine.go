// Package selection implements the interactive region-selection state
// machine driven by the overlay window. It is free of platform code so the
// transition rules can be exercised directly in tests.
package selection

import "image"

// State is the overlay's selection state.
type State int

const (
	Idle State = iota
	Hovering
	Selected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Hovering:
		return "hovering"
	case Selected:
		return "selected"
	}
	return "unknown"
}

const (
	MinWidth  = 10
	MinHeight = 10
)

// Result is the outcome of one selection session.
type Result struct {
	Cancelled bool
	X         int
	Y         int
	Width     int
	Height    int
}

// CancelledResult is returned when the user backs out.
func CancelledResult() Result { return Result{Cancelled: true} }

// DragContext is captured at button-down and lives until button-up.
type DragContext struct {
	Handle    Handle
	Start     image.Point
	StartRect Rect
}

// Update tells the host what to do after an input event.
type Update struct {
	Redraw  bool
	Cursor  Cursor
	Capture bool
	Release bool
	Done    bool
}

// Snapshot is a read-only view of the machine used for rendering.
type Snapshot struct {
	State        State
	Rect         Rect
	Dragging     bool
	Handle       Handle
	Pointer      image.Point
	PointerValid bool
	Screen       Rect
	Toolbar      Toolbar
	HoverConfirm bool
	HoverCancel  bool
}

// Machine holds the selection state for one overlay session. It is not
// safe for concurrent use; the overlay drives it from its own thread.
type Machine struct {
	screen Rect
	prober Prober

	state   State
	rect    Rect
	drag    *DragContext
	toolbar Toolbar

	hoverConfirm bool
	hoverCancel  bool

	pointer      image.Point
	pointerValid bool

	result *Result
}

// NewMachine returns a machine in Idle covering screen. prober may be nil,
// in which case the overlay never previews windows.
func NewMachine(screen Rect, prober Prober) *Machine {
	return &Machine{screen: screen.Normalize(), prober: prober, state: Idle}
}

func (m *Machine) State() State     { return m.state }
func (m *Machine) Rect() Rect       { return m.rect }
func (m *Machine) Dragging() bool   { return m.drag != nil }
func (m *Machine) Toolbar() Toolbar { return m.toolbar }
func (m *Machine) Done() bool       { return m.result != nil }

// Result returns the session outcome once the machine is done.
func (m *Machine) Result() (Result, bool) {
	if m.result == nil {
		return Result{}, false
	}
	return *m.result, true
}

// Snapshot captures the state needed to paint one frame.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:        m.state,
		Rect:         m.rect,
		Dragging:     m.drag != nil,
		Pointer:      m.pointer,
		PointerValid: m.pointerValid,
		Screen:       m.screen,
		Toolbar:      m.toolbar,
		HoverConfirm: m.hoverConfirm,
		HoverCancel:  m.hoverCancel,
	}
	if m.drag != nil {
		s.Handle = m.drag.Handle
	}
	return s
}

// PointerMove handles pointer motion at p.
func (m *Machine) PointerMove(p image.Point) Update {
	if m.Done() {
		return Update{}
	}
	m.pointer = p
	m.pointerValid = true

	if m.drag != nil {
		m.rect = Drag(m.drag.Handle, m.drag.StartRect, m.drag.Start, p)
		return Update{Redraw: true, Cursor: dragCursor(m.drag.Handle)}
	}

	switch m.state {
	case Selected:
		m.hoverConfirm = m.toolbar.Confirm.Contains(p)
		m.hoverCancel = m.toolbar.Cancel.Contains(p)
		if m.hoverConfirm || m.hoverCancel {
			return Update{Redraw: true, Cursor: CursorHand}
		}
		return Update{Redraw: true, Cursor: CursorFor(HitTest(m.rect, p))}
	default:
		m.probe(p)
		return Update{Redraw: true, Cursor: CursorCross}
	}
}

// PointerLeave marks the pointer as outside the overlay.
func (m *Machine) PointerLeave() Update {
	m.pointerValid = false
	return Update{Redraw: true, Cursor: CursorCross}
}

// ButtonDown handles a primary button press at p.
func (m *Machine) ButtonDown(p image.Point) Update {
	if m.Done() {
		return Update{}
	}
	m.pointer = p
	m.pointerValid = true

	switch m.state {
	case Selected:
		if m.toolbar.Confirm.Contains(p) {
			return m.confirm()
		}
		if m.toolbar.Cancel.Contains(p) {
			return m.finish(CancelledResult())
		}
		h := HitTest(m.rect, p)
		if h == None {
			m.clearSelection()
			m.rect = Rect{Left: p.X, Top: p.Y, Right: p.X, Bottom: p.Y}
		}
		m.beginDrag(h, p)
		return Update{Redraw: true, Capture: true, Cursor: dragCursor(h)}
	case Hovering:
		m.beginDrag(Move, p)
		return Update{Redraw: true, Capture: true, Cursor: CursorSizeAll}
	default:
		m.rect = Rect{Left: p.X, Top: p.Y, Right: p.X, Bottom: p.Y}
		m.beginDrag(None, p)
		return Update{Redraw: true, Capture: true, Cursor: CursorCross}
	}
}

// ButtonUp handles the primary button release at p.
func (m *Machine) ButtonUp(p image.Point) Update {
	if m.Done() || m.drag == nil {
		return Update{}
	}
	m.pointer = p
	m.rect = Drag(m.drag.Handle, m.drag.StartRect, m.drag.Start, p)
	m.drag = nil

	if m.rect.Width() >= MinWidth && m.rect.Height() >= MinHeight {
		m.state = Selected
		m.toolbar = LayoutToolbar(m.rect, m.screen)
		m.hoverConfirm = m.toolbar.Confirm.Contains(p)
		m.hoverCancel = m.toolbar.Cancel.Contains(p)
		return Update{Redraw: true, Release: true, Cursor: CursorFor(HitTest(m.rect, p))}
	}

	m.clearSelection()
	m.rect = Rect{}
	return Update{Redraw: true, Release: true, Cursor: CursorCross}
}

// Escape cancels the session from any state.
func (m *Machine) Escape() Update {
	if m.Done() {
		return Update{}
	}
	return m.finish(CancelledResult())
}

// Close records a cancellation when the window goes away before a result.
func (m *Machine) Close() Update {
	if m.Done() {
		return Update{}
	}
	return m.finish(CancelledResult())
}

func (m *Machine) beginDrag(h Handle, p image.Point) {
	m.drag = &DragContext{Handle: h, Start: p, StartRect: m.rect}
}

func (m *Machine) probe(p image.Point) {
	if m.prober != nil {
		if r, ok := m.prober.WindowAt(p); ok {
			m.state = Hovering
			m.rect = r.Normalize()
			return
		}
	}
	m.state = Idle
	m.rect = Rect{}
}

func (m *Machine) clearSelection() {
	m.state = Idle
	m.toolbar = Toolbar{}
	m.hoverConfirm = false
	m.hoverCancel = false
}

func (m *Machine) confirm() Update {
	r := m.rect.Normalize()
	if r.Width() < MinWidth || r.Height() < MinHeight {
		return m.finish(CancelledResult())
	}
	return m.finish(Result{X: r.Left, Y: r.Top, Width: r.Width(), Height: r.Height()})
}

func (m *Machine) finish(r Result) Update {
	release := m.drag != nil
	m.drag = nil
	m.result = &r
	return Update{Done: true, Release: release}
}

func dragCursor(h Handle) Cursor {
	if h == None {
		return CursorCross
	}
	return CursorFor(h)
}
