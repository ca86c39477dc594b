//go:build windows

package screenshot

import (
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"

	"screenshot-native/src/gdi"
)

const (
	pwRenderFullContent = 0x00000002
	captureBlt          = 0x40000000
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procPrintWindow = user32.NewProc("PrintWindow")
	procIsWindow    = user32.NewProc("IsWindow")
	procIsIconic    = user32.NewProc("IsIconic")
)

// CaptureWindow captures a top-level window as PNG. It tries PrintWindow,
// then a window-DC copy, then restores the window if minimized and copies
// its bounds from the screen. The last strategy includes whatever covers
// the window.
func CaptureWindow(hwnd uintptr) ([]byte, error) {
	h := win.HWND(hwnd)
	if r, _, _ := procIsWindow.Call(hwnd); r == 0 {
		return nil, &CaptureError{Op: "capture window", Err: fmt.Errorf("window %#x does not exist", hwnd)}
	}

	img, err := runChain([]strategy{
		{name: "PrintWindow", capture: func() (*image.RGBA, error) { return printWindowCapture(h) }},
		{name: "WindowDC", capture: func() (*image.RGBA, error) { return windowDCCapture(h) }},
		{name: "ScreenCopy", capture: func() (*image.RGBA, error) { return screenCopyCapture(h) }},
	})
	if err != nil {
		return nil, err
	}
	return Encode(img)
}

func windowSize(h win.HWND) (win.RECT, int, int, error) {
	var r win.RECT
	if !win.GetWindowRect(h, &r) {
		return r, 0, 0, fmt.Errorf("GetWindowRect failed")
	}
	w, ht := int(r.Right-r.Left), int(r.Bottom-r.Top)
	if w <= 0 || ht <= 0 {
		return r, 0, 0, fmt.Errorf("window has no area: %dx%d", w, ht)
	}
	return r, w, ht, nil
}

func printWindowCapture(h win.HWND) (*image.RGBA, error) {
	_, w, ht, err := windowSize(h)
	if err != nil {
		return nil, err
	}
	s := gdi.NewScope()
	defer s.Release()

	screenDC, err := s.ScreenDC()
	if err != nil {
		return nil, err
	}
	mem, err := s.CompatibleDC(screenDC)
	if err != nil {
		return nil, err
	}
	bmp, bits, err := s.DIBSection(mem, w, ht)
	if err != nil {
		return nil, err
	}
	s.Select(mem, win.HGDIOBJ(bmp))

	if r, _, _ := procPrintWindow.Call(uintptr(h), uintptr(mem), pwRenderFullContent); r == 0 {
		return nil, fmt.Errorf("PrintWindow returned 0")
	}
	img := gdi.FromBGRA(bits, w, ht)
	gdi.ForceOpaque(img)
	return img, nil
}

func windowDCCapture(h win.HWND) (*image.RGBA, error) {
	_, w, ht, err := windowSize(h)
	if err != nil {
		return nil, err
	}
	s := gdi.NewScope()
	defer s.Release()

	wdc, err := s.WindowDC(h)
	if err != nil {
		return nil, err
	}
	mem, err := s.CompatibleDC(wdc)
	if err != nil {
		return nil, err
	}
	bmp, bits, err := s.DIBSection(mem, w, ht)
	if err != nil {
		return nil, err
	}
	s.Select(mem, win.HGDIOBJ(bmp))

	if !win.BitBlt(mem, 0, 0, int32(w), int32(ht), wdc, 0, 0, win.SRCCOPY|captureBlt) {
		return nil, fmt.Errorf("BitBlt from window DC failed")
	}
	img := gdi.FromBGRA(bits, w, ht)
	gdi.ForceOpaque(img)
	return img, nil
}

func screenCopyCapture(h win.HWND) (*image.RGBA, error) {
	if r, _, _ := procIsIconic.Call(uintptr(h)); r != 0 {
		win.ShowWindow(h, win.SW_RESTORE)
		time.Sleep(WindowSettleDelay)
	}
	r, _, _, err := windowSize(h)
	if err != nil {
		return nil, err
	}
	return screenshot.CaptureRect(image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)))
}
