// Package bridge binds the native operations to method-channel names.
package bridge

import (
	"context"
	"errors"
	"log"

	"screenshot-native/src/clipboard"
	"screenshot-native/src/methodchannel"
	"screenshot-native/src/screenshot"
	"screenshot-native/src/selection"
	"screenshot-native/src/session"
	"screenshot-native/src/windowlist"
)

// Operation names understood by the UI layer.
const (
	MethodCaptureFullScreen        = "captureFullScreen"
	MethodCaptureRegion            = "captureRegion"
	MethodCaptureWindow            = "captureWindow"
	MethodGetAvailableWindows      = "getAvailableWindows"
	MethodShowNativeRegionCapture  = "showNativeRegionCapture"
	MethodGetRegionSelectionResult = "getRegionSelectionResult"
	MethodRegisterHotkey           = "registerHotkey"
	MethodUnregisterHotkey         = "unregisterHotkey"
	MethodHasImage                 = "hasImage"
	MethodGetImageFromClipboard    = "getImageFromClipboard"
	MethodSetImageToClipboard      = "setImageToClipboard"
	MethodClearClipboard           = "clearClipboard"
	MethodSetTextToClipboard       = "setTextToClipboard"
)

// Capturer produces PNG bytes.
type Capturer interface {
	CaptureFullScreen() ([]byte, error)
	CaptureRegion(region screenshot.Region) ([]byte, error)
	CaptureWindow(hwnd uintptr) ([]byte, error)
}

// WindowLister enumerates capturable top-level windows.
type WindowLister interface {
	ListCapturableWindows() ([]windowlist.Descriptor, error)
}

// Sessions starts overlay sessions and hands back their results.
type Sessions interface {
	Start(ctx context.Context) error
	Take() (selection.Result, bool)
}

// Hotkeys binds global shortcuts to action ids.
type Hotkeys interface {
	Register(actionID, spec string) bool
	Unregister(actionID string) bool
}

// Clipboard is the system clipboard.
type Clipboard interface {
	HasImage() bool
	ReadImage() []byte
	WriteImage(data []byte) error
	Clear() error
	Write(text string) error
}

// Deps are the components behind the operations. Nil members fall back to
// the system implementations, except Sessions and Hotkeys which must be
// provided for their operations to be registered.
type Deps struct {
	Capture   Capturer
	Windows   WindowLister
	Sessions  Sessions
	Hotkeys   Hotkeys
	Clipboard Clipboard
}

// RunnerSessions adapts a session.Runner to Sessions.
type RunnerSessions struct {
	Runner *session.Runner
}

func (s RunnerSessions) Start(ctx context.Context) error { return s.Runner.Start(ctx) }
func (s RunnerSessions) Take() (selection.Result, bool)  { return s.Runner.Slot().Take() }

type systemCapturer struct{}

func (systemCapturer) CaptureFullScreen() ([]byte, error) { return screenshot.CaptureFullScreen() }
func (systemCapturer) CaptureRegion(r screenshot.Region) ([]byte, error) {
	return screenshot.CaptureRegion(r)
}
func (systemCapturer) CaptureWindow(hwnd uintptr) ([]byte, error) { return screenshot.CaptureWindow(hwnd) }

type systemWindows struct{}

func (systemWindows) ListCapturableWindows() ([]windowlist.Descriptor, error) {
	return windowlist.ListCapturableWindows()
}

type systemClipboard struct{}

func (systemClipboard) HasImage() bool               { return clipboard.HasImage() }
func (systemClipboard) ReadImage() []byte            { return clipboard.ReadImage() }
func (systemClipboard) WriteImage(data []byte) error { return clipboard.WriteImage(data) }
func (systemClipboard) Clear() error                 { return clipboard.Clear() }
func (systemClipboard) Write(text string) error      { return clipboard.Write(text) }

type bridge struct {
	Deps
}

// Register installs every operation on d.
func Register(d *methodchannel.Dispatcher, deps Deps) {
	if deps.Capture == nil {
		deps.Capture = systemCapturer{}
	}
	if deps.Windows == nil {
		deps.Windows = systemWindows{}
	}
	if deps.Clipboard == nil {
		deps.Clipboard = systemClipboard{}
	}
	b := &bridge{Deps: deps}

	d.Handle(MethodCaptureFullScreen, methodchannel.CodeCapture, b.captureFullScreen)
	d.Handle(MethodCaptureRegion, methodchannel.CodeCapture, b.captureRegion)
	d.Handle(MethodCaptureWindow, methodchannel.CodeCapture, b.captureWindow)
	d.Handle(MethodGetAvailableWindows, methodchannel.CodeEnum, b.getAvailableWindows)
	if deps.Sessions != nil {
		d.Handle(MethodShowNativeRegionCapture, methodchannel.CodeOverlay, b.showNativeRegionCapture)
		d.Handle(MethodGetRegionSelectionResult, methodchannel.CodeOverlay, b.getRegionSelectionResult)
	}
	if deps.Hotkeys != nil {
		d.Handle(MethodRegisterHotkey, methodchannel.CodeInvalidArguments, b.registerHotkey)
		d.Handle(MethodUnregisterHotkey, methodchannel.CodeInvalidArguments, b.unregisterHotkey)
	}
	d.Handle(MethodHasImage, methodchannel.CodeClipboard, b.hasImage)
	d.Handle(MethodGetImageFromClipboard, methodchannel.CodeClipboard, b.getImageFromClipboard)
	d.Handle(MethodSetImageToClipboard, methodchannel.CodeClipboard, b.setImageToClipboard)
	d.Handle(MethodClearClipboard, methodchannel.CodeClipboard, b.clearClipboard)
	d.Handle(MethodSetTextToClipboard, methodchannel.CodeClipboard, b.setTextToClipboard)
}

func (b *bridge) captureFullScreen(ctx context.Context, _ methodchannel.Args) (any, error) {
	return b.Capture.CaptureFullScreen()
}

func (b *bridge) captureRegion(ctx context.Context, a methodchannel.Args) (any, error) {
	var region screenshot.Region
	var err error
	if region.X, err = a.Int("x"); err != nil {
		return nil, err
	}
	if region.Y, err = a.Int("y"); err != nil {
		return nil, err
	}
	if region.Width, err = a.Int("width"); err != nil {
		return nil, err
	}
	if region.Height, err = a.Int("height"); err != nil {
		return nil, err
	}
	if err := region.Validate(); err != nil {
		return nil, methodchannel.InvalidArgs("%v", err)
	}
	return b.Capture.CaptureRegion(region)
}

func (b *bridge) captureWindow(ctx context.Context, a methodchannel.Args) (any, error) {
	id, err := a.String("windowId")
	if err != nil {
		return nil, err
	}
	hwnd, err := windowlist.ParseID(id)
	if err != nil {
		return nil, methodchannel.InvalidArgs("%v", err)
	}
	return b.Capture.CaptureWindow(hwnd)
}

func (b *bridge) getAvailableWindows(ctx context.Context, _ methodchannel.Args) (any, error) {
	windows, err := b.Windows.ListCapturableWindows()
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []windowlist.Descriptor{}
	}
	return windows, nil
}

func (b *bridge) showNativeRegionCapture(ctx context.Context, _ methodchannel.Args) (any, error) {
	if err := b.Sessions.Start(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, session.ErrBusy) {
			log.Printf("showNativeRegionCapture: overlay already open")
			return false, nil
		}
		return nil, err
	}
	return true, nil
}

type selectionPayload struct {
	Cancelled bool `json:"cancelled,omitempty"`
	X         *int `json:"x,omitempty"`
	Y         *int `json:"y,omitempty"`
	Width     *int `json:"width,omitempty"`
	Height    *int `json:"height,omitempty"`
}

func (b *bridge) getRegionSelectionResult(ctx context.Context, _ methodchannel.Args) (any, error) {
	r, ok := b.Sessions.Take()
	if !ok {
		return nil, nil
	}
	if r.Cancelled {
		return selectionPayload{Cancelled: true}, nil
	}
	return selectionPayload{X: &r.X, Y: &r.Y, Width: &r.Width, Height: &r.Height}, nil
}

func (b *bridge) registerHotkey(ctx context.Context, a methodchannel.Args) (any, error) {
	action, err := a.String("actionId")
	if err != nil {
		return nil, err
	}
	spec, err := a.String("shortcut")
	if err != nil {
		return nil, err
	}
	if action == "" {
		return nil, methodchannel.InvalidArgs("actionId must not be empty")
	}
	return b.Hotkeys.Register(action, spec), nil
}

func (b *bridge) unregisterHotkey(ctx context.Context, a methodchannel.Args) (any, error) {
	action, err := a.String("actionId")
	if err != nil {
		return nil, err
	}
	return b.Hotkeys.Unregister(action), nil
}

func (b *bridge) hasImage(ctx context.Context, _ methodchannel.Args) (any, error) {
	return b.Clipboard.HasImage(), nil
}

func (b *bridge) getImageFromClipboard(ctx context.Context, _ methodchannel.Args) (any, error) {
	data := b.Clipboard.ReadImage()
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (b *bridge) setImageToClipboard(ctx context.Context, a methodchannel.Args) (any, error) {
	data, err := a.Bytes("image")
	if err != nil {
		return nil, err
	}
	if err := b.Clipboard.WriteImage(data); err != nil {
		log.Printf("setImageToClipboard: %v", err)
		return false, nil
	}
	return true, nil
}

func (b *bridge) clearClipboard(ctx context.Context, _ methodchannel.Args) (any, error) {
	return nil, b.Clipboard.Clear()
}

func (b *bridge) setTextToClipboard(ctx context.Context, a methodchannel.Args) (any, error) {
	text, err := a.String("text")
	if err != nil {
		return nil, err
	}
	if err := b.Clipboard.Write(text); err != nil {
		log.Printf("setTextToClipboard: %v", err)
		return false, nil
	}
	return true, nil
}
