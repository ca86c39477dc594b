package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenshot-native/src/methodchannel"
	"screenshot-native/src/screenshot"
	"screenshot-native/src/selection"
	"screenshot-native/src/session"
	"screenshot-native/src/windowlist"
)

type fakeCapture struct {
	regions []screenshot.Region
	windows []uintptr
	err     error
}

func (f *fakeCapture) CaptureFullScreen() ([]byte, error) { return []byte("full"), f.err }
func (f *fakeCapture) CaptureRegion(r screenshot.Region) ([]byte, error) {
	f.regions = append(f.regions, r)
	return []byte("region"), f.err
}
func (f *fakeCapture) CaptureWindow(hwnd uintptr) ([]byte, error) {
	f.windows = append(f.windows, hwnd)
	return []byte("window"), f.err
}

type fakeWindows struct {
	list []windowlist.Descriptor
	err  error
}

func (f fakeWindows) ListCapturableWindows() ([]windowlist.Descriptor, error) { return f.list, f.err }

type fakeSessions struct {
	slot    session.Slot
	started int
	busy    bool
}

func (f *fakeSessions) Start(ctx context.Context) error {
	if f.busy {
		return session.ErrBusy
	}
	f.started++
	return nil
}

func (f *fakeSessions) Take() (selection.Result, bool) { return f.slot.Take() }

type fakeHotkeys struct {
	bound map[string]string
}

func (f *fakeHotkeys) Register(actionID, spec string) bool {
	if spec == "ctrl+unknown" {
		return false
	}
	f.bound[actionID] = spec
	return true
}

func (f *fakeHotkeys) Unregister(actionID string) bool {
	_, ok := f.bound[actionID]
	delete(f.bound, actionID)
	return ok
}

type fakeClipboard struct {
	image []byte
	text  string
}

func (f *fakeClipboard) HasImage() bool    { return len(f.image) > 0 }
func (f *fakeClipboard) ReadImage() []byte { return f.image }
func (f *fakeClipboard) WriteImage(data []byte) error {
	if string(data) == "junk" {
		return errors.New("not an image")
	}
	f.image = data
	return nil
}
func (f *fakeClipboard) Clear() error            { f.image, f.text = nil, ""; return nil }
func (f *fakeClipboard) Write(text string) error { f.text = text; return nil }

type harness struct {
	d        *methodchannel.Dispatcher
	capture  *fakeCapture
	sessions *fakeSessions
	hotkeys  *fakeHotkeys
	clip     *fakeClipboard
}

func newHarness(windows fakeWindows) *harness {
	h := &harness{
		d:        methodchannel.NewDispatcher(),
		capture:  &fakeCapture{},
		sessions: &fakeSessions{},
		hotkeys:  &fakeHotkeys{bound: map[string]string{}},
		clip:     &fakeClipboard{},
	}
	Register(h.d, Deps{
		Capture:   h.capture,
		Windows:   windows,
		Sessions:  h.sessions,
		Hotkeys:   h.hotkeys,
		Clipboard: h.clip,
	})
	return h
}

func (h *harness) call(t *testing.T, method string, args any) methodchannel.Response {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		require.NoError(t, err)
		raw = b
	}
	return h.d.Dispatch(context.Background(), methodchannel.Request{ID: 1, Method: method, Args: raw})
}

func requireCode(t *testing.T, resp methodchannel.Response, code methodchannel.Code) {
	t.Helper()
	require.NotNil(t, resp.Error, "expected %s", code)
	assert.Equal(t, code, resp.Error.Code)
}

func TestAllOperationsRegistered(t *testing.T) {
	h := newHarness(fakeWindows{})
	assert.ElementsMatch(t, []string{
		"captureFullScreen", "captureRegion", "captureWindow", "getAvailableWindows",
		"showNativeRegionCapture", "getRegionSelectionResult", "registerHotkey",
		"unregisterHotkey", "hasImage", "getImageFromClipboard", "setImageToClipboard",
		"clearClipboard", "setTextToClipboard",
	}, h.d.Methods())
}

func TestCaptureRegionValidatesBeforeCapture(t *testing.T) {
	h := newHarness(fakeWindows{})

	requireCode(t, h.call(t, MethodCaptureRegion, map[string]any{"x": 0, "y": 0, "width": 0, "height": 10}), methodchannel.CodeInvalidArguments)
	requireCode(t, h.call(t, MethodCaptureRegion, map[string]any{"x": 0, "y": 0, "width": 10}), methodchannel.CodeInvalidArguments)
	requireCode(t, h.call(t, MethodCaptureRegion, map[string]any{"x": "0", "y": 0, "width": 10, "height": 10}), methodchannel.CodeInvalidArguments)
	requireCode(t, h.call(t, MethodCaptureRegion, map[string]any{"x": 0.5, "y": 0, "width": 10, "height": 10}), methodchannel.CodeInvalidArguments)
	assert.Empty(t, h.capture.regions)

	resp := h.call(t, MethodCaptureRegion, map[string]any{"x": -1920, "y": 0, "width": 300, "height": 200})
	require.Nil(t, resp.Error)
	assert.Equal(t, []screenshot.Region{{X: -1920, Y: 0, Width: 300, Height: 200}}, h.capture.regions)

	var png []byte
	require.NoError(t, json.Unmarshal(resp.Result, &png))
	assert.Equal(t, []byte("region"), png)
}

func TestCaptureFailureIsCaptureError(t *testing.T) {
	h := newHarness(fakeWindows{})
	h.capture.err = &screenshot.CaptureError{Op: "capture screen", Err: errors.New("BitBlt failed")}

	resp := h.call(t, MethodCaptureFullScreen, nil)
	requireCode(t, resp, methodchannel.CodeCapture)
	assert.Contains(t, resp.Error.Message, "BitBlt failed")
}

func TestCaptureWindowParsesID(t *testing.T) {
	h := newHarness(fakeWindows{})

	requireCode(t, h.call(t, MethodCaptureWindow, map[string]any{"windowId": "not-hex"}), methodchannel.CodeInvalidArguments)
	requireCode(t, h.call(t, MethodCaptureWindow, map[string]any{"windowId": 12}), methodchannel.CodeInvalidArguments)
	requireCode(t, h.call(t, MethodCaptureWindow, nil), methodchannel.CodeInvalidArguments)
	assert.Empty(t, h.capture.windows)

	resp := h.call(t, MethodCaptureWindow, map[string]any{"windowId": windowlist.FormatID(0x1A2B)})
	require.Nil(t, resp.Error)
	assert.Equal(t, []uintptr{0x1A2B}, h.capture.windows)
}

func TestGetAvailableWindows(t *testing.T) {
	h := newHarness(fakeWindows{list: []windowlist.Descriptor{{Title: "Editor", ID: "0000000000000010", AppName: "code"}}})
	resp := h.call(t, MethodGetAvailableWindows, nil)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `[{"title":"Editor","id":"0000000000000010","appName":"code"}]`, string(resp.Result))

	h = newHarness(fakeWindows{})
	resp = h.call(t, MethodGetAvailableWindows, nil)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `[]`, string(resp.Result))

	h = newHarness(fakeWindows{err: errors.New("EnumWindows failed")})
	requireCode(t, h.call(t, MethodGetAvailableWindows, nil), methodchannel.CodeEnum)
}

func TestRegionSelectionFlow(t *testing.T) {
	h := newHarness(fakeWindows{})

	resp := h.call(t, MethodShowNativeRegionCapture, nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, "true", string(resp.Result))
	assert.Equal(t, 1, h.sessions.started)

	resp = h.call(t, MethodGetRegionSelectionResult, nil)
	assert.Equal(t, "null", string(resp.Result), "pending")

	h.sessions.slot.Post(selection.Result{X: 0, Y: 15, Width: 640, Height: 480})
	resp = h.call(t, MethodGetRegionSelectionResult, nil)
	assert.JSONEq(t, `{"x":0,"y":15,"width":640,"height":480}`, string(resp.Result))
	resp = h.call(t, MethodGetRegionSelectionResult, nil)
	assert.Equal(t, "null", string(resp.Result), "consumed once")

	h.sessions.slot.Post(selection.CancelledResult())
	resp = h.call(t, MethodGetRegionSelectionResult, nil)
	assert.JSONEq(t, `{"cancelled":true}`, string(resp.Result))

	h.sessions.busy = true
	resp = h.call(t, MethodShowNativeRegionCapture, nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, "false", string(resp.Result))
}

func TestHotkeyOperations(t *testing.T) {
	h := newHarness(fakeWindows{})

	resp := h.call(t, MethodRegisterHotkey, map[string]any{"actionId": "regionCapture", "shortcut": "ctrl+shift+a"})
	assert.Equal(t, "true", string(resp.Result))
	resp = h.call(t, MethodRegisterHotkey, map[string]any{"actionId": "regionCapture", "shortcut": "ctrl+unknown"})
	assert.Equal(t, "false", string(resp.Result))
	requireCode(t, h.call(t, MethodRegisterHotkey, map[string]any{"actionId": "x"}), methodchannel.CodeInvalidArguments)
	requireCode(t, h.call(t, MethodRegisterHotkey, map[string]any{"actionId": "", "shortcut": "f5"}), methodchannel.CodeInvalidArguments)

	resp = h.call(t, MethodUnregisterHotkey, map[string]any{"actionId": "regionCapture"})
	assert.Equal(t, "true", string(resp.Result))
	resp = h.call(t, MethodUnregisterHotkey, map[string]any{"actionId": "regionCapture"})
	assert.Equal(t, "false", string(resp.Result))
}

func TestClipboardOperations(t *testing.T) {
	h := newHarness(fakeWindows{})

	assert.Equal(t, "false", string(h.call(t, MethodHasImage, nil).Result))
	assert.Equal(t, "null", string(h.call(t, MethodGetImageFromClipboard, nil).Result))

	resp := h.call(t, MethodSetImageToClipboard, map[string]any{"image": []byte("png")})
	assert.Equal(t, "true", string(resp.Result))
	assert.Equal(t, "true", string(h.call(t, MethodHasImage, nil).Result))
	var got []byte
	require.NoError(t, json.Unmarshal(h.call(t, MethodGetImageFromClipboard, nil).Result, &got))
	assert.Equal(t, []byte("png"), got)

	resp = h.call(t, MethodSetImageToClipboard, map[string]any{"image": []byte("junk")})
	assert.Equal(t, "false", string(resp.Result))
	requireCode(t, h.call(t, MethodSetImageToClipboard, nil), methodchannel.CodeInvalidArguments)

	resp = h.call(t, MethodSetTextToClipboard, map[string]any{"text": "hello"})
	assert.Equal(t, "true", string(resp.Result))
	assert.Equal(t, "hello", h.clip.text)

	resp = h.call(t, MethodClearClipboard, nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, "null", string(resp.Result))
	assert.Nil(t, h.clip.image)
}

func TestOptionalOperationsNeedDeps(t *testing.T) {
	d := methodchannel.NewDispatcher()
	Register(d, Deps{Capture: &fakeCapture{}, Windows: fakeWindows{}, Clipboard: &fakeClipboard{}})
	resp := d.Dispatch(context.Background(), methodchannel.Request{ID: 2, Method: MethodShowNativeRegionCapture})
	requireCode(t, resp, methodchannel.CodeNotImplemented)
}
