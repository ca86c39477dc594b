package messages

import (
	"screenshot-native/src/selection"
)

// Message is the base interface for every event pushed to the UI layer.
type Message interface {
	Type() string
}

// Event names, exactly as the UI layer listens for them.
const (
	TypeRegionSelected  = "regionSelected"
	TypeRegionCancelled = "regionCancelled"
	TypeHotkeyPressed   = "hotkeyPressed"
	TypeOverlayFailed   = "overlayFailed"
)

// RegionSelected - the user confirmed a rectangle in virtual-screen pixels
type RegionSelected struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (m RegionSelected) Type() string { return TypeRegionSelected }

// RegionCancelled - the session ended without a selection
type RegionCancelled struct{}

func (m RegionCancelled) Type() string { return TypeRegionCancelled }

// HotkeyPressed - a registered global shortcut fired
type HotkeyPressed struct {
	ActionID string `json:"actionId"`
}

func (m HotkeyPressed) Type() string { return TypeHotkeyPressed }

// OverlayFailed - the overlay could not start (backdrop or window creation)
type OverlayFailed struct {
	Message string `json:"message"`
}

func (m OverlayFailed) Type() string { return TypeOverlayFailed }

// FromSelection maps the outcome of a selection session onto its event.
func FromSelection(r selection.Result, err error) Message {
	switch {
	case err != nil:
		return OverlayFailed{Message: err.Error()}
	case r.Cancelled:
		return RegionCancelled{}
	default:
		return RegionSelected{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
	}
}

// Publisher delivers messages to the UI layer.
type Publisher interface {
	Publish(m Message)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(m Message)

func (f PublisherFunc) Publish(m Message) { f(m) }

// Broadcaster is the transport side of a Publisher.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// NewPublisher publishes every message as an event named by its Type.
func NewPublisher(b Broadcaster) Publisher {
	return PublisherFunc(func(m Message) { b.Broadcast(m.Type(), m) })
}
