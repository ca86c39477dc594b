//go:build windows

package gdi

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procGetWindowDC = user32.NewProc("GetWindowDC")
)

// ScreenDC returns the desktop DC.
func (s *Scope) ScreenDC() (win.HDC, error) {
	dc := win.GetDC(0)
	if dc == 0 {
		return 0, fmt.Errorf("%w: GetDC", ErrResource)
	}
	s.Defer(func() { win.ReleaseDC(0, dc) })
	return dc, nil
}

// WindowDC returns a DC for the whole window, non-client area included.
func (s *Scope) WindowDC(hwnd win.HWND) (win.HDC, error) {
	r, _, _ := procGetWindowDC.Call(uintptr(hwnd))
	dc := win.HDC(r)
	if dc == 0 {
		return 0, fmt.Errorf("%w: GetWindowDC", ErrResource)
	}
	s.Defer(func() { win.ReleaseDC(hwnd, dc) })
	return dc, nil
}

// CompatibleDC creates a memory DC compatible with dc.
func (s *Scope) CompatibleDC(dc win.HDC) (win.HDC, error) {
	mem := win.CreateCompatibleDC(dc)
	if mem == 0 {
		return 0, fmt.Errorf("%w: CreateCompatibleDC", ErrResource)
	}
	s.Defer(func() { win.DeleteDC(mem) })
	return mem, nil
}

// DIBSection creates a top-down 32bpp DIB and returns its pixel memory.
func (s *Scope) DIBSection(dc win.HDC, width, height int) (win.HBITMAP, []byte, error) {
	if width <= 0 || height <= 0 {
		return 0, nil, fmt.Errorf("%w: DIB size %dx%d", ErrResource, width, height)
	}
	bi := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height),
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	var bits unsafe.Pointer
	bmp := win.CreateDIBSection(dc, &bi.BmiHeader, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bmp == 0 || bits == nil {
		return 0, nil, fmt.Errorf("%w: CreateDIBSection", ErrResource)
	}
	s.Defer(func() { win.DeleteObject(win.HGDIOBJ(bmp)) })
	return bmp, unsafe.Slice((*byte)(bits), width*height*4), nil
}

// Select selects obj into dc and restores the previous object on release.
func (s *Scope) Select(dc win.HDC, obj win.HGDIOBJ) {
	old := win.SelectObject(dc, obj)
	s.Defer(func() { win.SelectObject(dc, old) })
}

// BackBuffer is a DIB section selected into a memory DC. It is created once
// per window and reused for every paint; its objects belong to the Scope it
// was created in.
type BackBuffer struct {
	mem  win.HDC
	bits []byte
	size image.Point
}

// BackBuffer creates a width x height back buffer compatible with dc.
func (s *Scope) BackBuffer(dc win.HDC, width, height int) (*BackBuffer, error) {
	mem, err := s.CompatibleDC(dc)
	if err != nil {
		return nil, err
	}
	bmp, bits, err := s.DIBSection(mem, width, height)
	if err != nil {
		return nil, err
	}
	s.Select(mem, win.HGDIOBJ(bmp))
	return &BackBuffer{mem: mem, bits: bits, size: image.Pt(width, height)}, nil
}

// Present converts the part of img inside dirty and copies it to dst with a
// single BitBlt. img must have the buffer's size and a zero origin.
func (b *BackBuffer) Present(dst win.HDC, img *image.RGBA, dirty image.Rectangle) error {
	if img.Bounds().Size() != b.size {
		return fmt.Errorf("frame is %v, back buffer is %v", img.Bounds().Size(), b.size)
	}
	r := ToBGRARect(b.bits, img, dirty)
	if r.Empty() {
		return nil
	}
	if !win.BitBlt(dst, int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()), b.mem, int32(r.Min.X), int32(r.Min.Y), win.SRCCOPY) {
		return fmt.Errorf("BitBlt failed")
	}
	return nil
}
