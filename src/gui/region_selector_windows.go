//go:build windows

package gui

import (
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"screenshot-native/src/gdi"
	"screenshot-native/src/render"
	"screenshot-native/src/screenshot"
	"screenshot-native/src/selection"
	"screenshot-native/src/windowlist"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32DLL                    = windows.NewLazySystemDLL("user32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")

	overlayProc = syscall.NewCallback(overlayWndProc)

	// sessionMu serialises overlays; active is only touched on the thread
	// pumping the overlay window.
	sessionMu sync.Mutex
	active    *overlaySession
)

type overlaySession struct {
	hwnd      win.HWND
	origin    image.Point
	machine   *selection.Machine
	renderer  *render.Renderer
	cursors   map[selection.Cursor]win.HCURSOR
	cursor    win.HCURSOR
	tracking  bool
	destroyed bool
	buffer    *gdi.BackBuffer
}

// StartInteractiveRegionSelection freezes the desktop, covers the virtual
// screen with a topmost overlay and blocks until the user confirms or
// cancels. The caller must stay on one OS thread for the whole call.
func StartInteractiveRegionSelection() (selection.Result, error) {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	backdrop, err := screenshot.CaptureDesktopBackdrop()
	if err != nil {
		return selection.CancelledResult(), fmt.Errorf("%w: %w", ErrStartup, err)
	}
	defer backdrop.Release()

	bounds := backdrop.Bounds()
	log.Printf("OVERLAY: virtual screen %v", bounds)
	screen := selection.FromImage(bounds)
	stack := probeStack(windowlist.ZOrderBounds(0))
	log.Printf("OVERLAY: %d windows available for hover preview", len(stack))

	s := &overlaySession{
		origin:   backdrop.Origin,
		machine:  selection.NewMachine(screen, stack),
		renderer: render.New(backdrop),
		cursors:  loadCursors(),
	}
	s.cursor = s.cursors[selection.CursorCross]
	active = s
	defer func() { active = nil }()

	classNameStr := fmt.Sprintf("ScreenshotOverlay_%d", time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   overlayProc,
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       s.cursor,
		LpszClassName: className,
	}
	if win.RegisterClassEx(&wndClass) == 0 {
		return selection.CancelledResult(), fmt.Errorf("%w: register window class", ErrStartup)
	}
	defer win.UnregisterClass(className)

	s.hwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW,
		className,
		syscall.StringToUTF16Ptr("Select Region"),
		win.WS_POPUP|win.WS_VISIBLE,
		int32(bounds.Min.X), int32(bounds.Min.Y), int32(bounds.Dx()), int32(bounds.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if s.hwnd == 0 {
		return selection.CancelledResult(), fmt.Errorf("%w: create overlay window", ErrStartup)
	}
	log.Printf("OVERLAY: window created, hwnd: %v", s.hwnd)

	// Window GDI objects outlive every paint and go with the session.
	scope := gdi.NewScope()
	defer scope.Release()
	if err := s.allocBuffer(scope, bounds.Size()); err != nil {
		win.DestroyWindow(s.hwnd)
		return selection.CancelledResult(), fmt.Errorf("%w: %w", ErrStartup, err)
	}
	// Paints that arrived before the buffer existed were skipped.
	win.InvalidateRect(s.hwnd, nil, false)

	win.ShowWindow(s.hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	if !win.SetForegroundWindow(s.hwnd) {
		log.Printf("OVERLAY: SetForegroundWindow refused")
	}
	win.BringWindowToTop(s.hwnd)
	win.SetFocus(s.hwnd)
	win.UpdateWindow(s.hwnd)

	s.pump()

	if !s.destroyed {
		win.DestroyWindow(s.hwnd)
	}
	result, ok := s.machine.Result()
	if !ok {
		result = selection.CancelledResult()
	}
	log.Printf("OVERLAY: session finished: %+v", result)
	return result, nil
}

// pump runs the message loop until the machine reports a result.
func (s *overlaySession) pump() {
	var msg win.MSG
	for !s.machine.Done() {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 {
			return
		}
		if ret == -1 {
			log.Printf("OVERLAY: GetMessage error")
			s.machine.Close()
			return
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		if !s.destroyed {
			win.SetWindowPos(s.hwnd, win.HWND_TOPMOST, 0, 0, 0, 0,
				win.SWP_NOMOVE|win.SWP_NOSIZE|win.SWP_NOACTIVATE)
		}
	}
}

func loadCursors() map[selection.Cursor]win.HCURSOR {
	ids := map[selection.Cursor]uintptr{
		selection.CursorCross:    win.IDC_CROSS,
		selection.CursorArrow:    win.IDC_ARROW,
		selection.CursorSizeNWSE: win.IDC_SIZENWSE,
		selection.CursorSizeNESW: win.IDC_SIZENESW,
		selection.CursorSizeNS:   win.IDC_SIZENS,
		selection.CursorSizeWE:   win.IDC_SIZEWE,
		selection.CursorSizeAll:  win.IDC_SIZEALL,
		selection.CursorHand:     win.IDC_HAND,
	}
	cursors := make(map[selection.Cursor]win.HCURSOR, len(ids))
	for c, id := range ids {
		h := win.LoadCursor(0, win.MAKEINTRESOURCE(id))
		if h == 0 {
			log.Printf("OVERLAY: failed to load cursor %d", id)
		}
		cursors[c] = h
	}
	return cursors
}

// point converts client coordinates in lParam to virtual-screen coordinates.
func (s *overlaySession) point(lParam uintptr) image.Point {
	x := int(int16(win.LOWORD(uint32(lParam))))
	y := int(int16(win.HIWORD(uint32(lParam))))
	return image.Pt(x, y).Add(s.origin)
}

func (s *overlaySession) apply(u selection.Update) {
	if u.Capture {
		win.SetCapture(s.hwnd)
	}
	if u.Release {
		win.ReleaseCapture()
	}
	if u.Redraw {
		if h := s.cursors[u.Cursor]; h != 0 {
			s.cursor = h
			win.SetCursor(h)
		}
		win.InvalidateRect(s.hwnd, nil, false)
	}
	if u.Done && !s.destroyed {
		// Wakes GetMessage when the result arrived through a sent message.
		win.PostMessage(s.hwnd, win.WM_NULL, 0, 0)
	}
}

func (s *overlaySession) trackLeave() {
	if s.tracking {
		return
	}
	tme := win.TRACKMOUSEEVENT{
		CbSize:    uint32(unsafe.Sizeof(win.TRACKMOUSEEVENT{})),
		DwFlags:   win.TME_LEAVE,
		HwndTrack: s.hwnd,
	}
	s.tracking = win.TrackMouseEvent(&tme)
}

// allocBuffer creates the back buffer every paint reuses.
func (s *overlaySession) allocBuffer(scope *gdi.Scope, size image.Point) error {
	tmp := gdi.NewScope()
	defer tmp.Release()
	dc, err := tmp.WindowDC(s.hwnd)
	if err != nil {
		return err
	}
	s.buffer, err = scope.BackBuffer(dc, size.X, size.Y)
	return err
}

func (s *overlaySession) paint() {
	var ps win.PAINTSTRUCT
	hdc := win.BeginPaint(s.hwnd, &ps)
	defer win.EndPaint(s.hwnd, &ps)
	if hdc == 0 || s.buffer == nil {
		return
	}
	frame := s.renderer.Render(s.machine.Snapshot())
	dirty := image.Rect(int(ps.RcPaint.Left), int(ps.RcPaint.Top), int(ps.RcPaint.Right), int(ps.RcPaint.Bottom))
	if err := s.buffer.Present(hdc, frame, dirty); err != nil {
		log.Printf("OVERLAY: paint failed: %v", err)
	}
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	s := active
	if s == nil || (s.hwnd != 0 && s.hwnd != hwnd) {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}
	if s.hwnd == 0 {
		s.hwnd = hwnd
	}

	switch msg {
	case win.WM_MOUSEMOVE:
		s.trackLeave()
		s.apply(s.machine.PointerMove(s.point(lParam)))
		return 0

	case win.WM_MOUSELEAVE:
		s.tracking = false
		s.apply(s.machine.PointerLeave())
		return 0

	case win.WM_LBUTTONDOWN:
		s.apply(s.machine.ButtonDown(s.point(lParam)))
		return 0

	case win.WM_LBUTTONUP:
		s.apply(s.machine.ButtonUp(s.point(lParam)))
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			log.Printf("OVERLAY: Escape pressed")
			s.apply(s.machine.Escape())
		}
		return 0

	case win.WM_SETCURSOR:
		if win.LOWORD(uint32(lParam)) == win.HTCLIENT {
			win.SetCursor(s.cursor)
			return 1
		}

	case win.WM_NCHITTEST:
		return win.HTCLIENT

	case win.WM_ERASEBKGND:
		return 1

	case win.WM_PAINT:
		s.paint()
		return 0

	case win.WM_CLOSE:
		s.apply(s.machine.Close())
		return 0

	case win.WM_DESTROY:
		s.destroyed = true
		s.apply(s.machine.Close())
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}
