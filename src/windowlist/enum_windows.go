//go:build windows

package windowlist

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"

	"screenshot-native/src/gdi"
	"screenshot-native/src/screenshot"
)

const (
	wmGetIcon          = 0x007F
	iconSmall          = 0
	iconBig            = 1
	gclpHIcon          = -14
	gclpHIconSm        = -34
	smtoAbortIfHung    = 0x0002
	iconTimeoutMs      = 100
	diNormal           = 0x0003
	dwmwaCloaked       = 14
	iconRenderSize     = 32
	maxWindowTextChars = 512
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procGetClassNameW        = user32.NewProc("GetClassNameW")
	procIsIconic             = user32.NewProc("IsIconic")
	procSendMessageTimeoutW  = user32.NewProc("SendMessageTimeoutW")
	procGetClassLongPtrW     = user32.NewProc("GetClassLongPtrW")
	procDrawIconEx           = user32.NewProc("DrawIconEx")
	dwmapi                   = windows.NewLazySystemDLL("dwmapi.dll")
	procDwmGetWindowAttr     = dwmapi.NewProc("DwmGetWindowAttribute")
)

var (
	enumMu       sync.Mutex
	enumHandles  []windows.HWND
	enumCallback = syscall.NewCallback(func(h windows.HWND, _ uintptr) uintptr {
		enumHandles = append(enumHandles, h)
		return 1
	})
)

// topLevelWindows returns every top-level window in z-order, topmost first.
func topLevelWindows() ([]windows.HWND, error) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumHandles = nil
	if err := windows.EnumWindows(enumCallback, nil); err != nil {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}
	out := enumHandles
	enumHandles = nil
	return out, nil
}

// ListCapturableWindows enumerates visible, titled, reasonably sized
// top-level windows. App names and icons are best effort.
func ListCapturableWindows() ([]Descriptor, error) {
	handles, err := topLevelWindows()
	if err != nil {
		return nil, err
	}
	var out []Descriptor
	for _, h := range handles {
		c := candidate(h)
		if !Capturable(c) {
			continue
		}
		out = append(out, Descriptor{
			Title:   CleanTitle(c.Title),
			ID:      FormatID(uintptr(h)),
			AppName: processName(h),
			Icon:    iconPNG(h),
		})
	}
	log.Printf("Enumerated %d capturable windows out of %d", len(out), len(handles))
	return out, nil
}

// ZOrderBounds returns the bounds of visible top-level windows, topmost
// first, for hover probing. exclude is skipped.
func ZOrderBounds(exclude uintptr) []image.Rectangle {
	handles, err := topLevelWindows()
	if err != nil {
		log.Printf("OVERLAY: window probe unavailable: %v", err)
		return nil
	}
	var out []image.Rectangle
	for _, h := range handles {
		if uintptr(h) == exclude {
			continue
		}
		c := candidate(h)
		if !c.Visible || c.Minimized || c.Cloaked || IsShellClass(c.ClassName) || c.Bounds.Empty() {
			continue
		}
		out = append(out, c.Bounds)
	}
	return out
}

func candidate(h windows.HWND) Candidate {
	var r win.RECT
	win.GetWindowRect(win.HWND(h), &r)
	minimized, _, _ := procIsIconic.Call(uintptr(h))
	return Candidate{
		Title:     windowText(h),
		ClassName: className(h),
		Visible:   win.IsWindowVisible(win.HWND(h)),
		Minimized: minimized != 0,
		Cloaked:   isCloaked(h),
		Bounds:    image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)),
	}
}

func windowText(h windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(h))
	if n == 0 {
		return ""
	}
	if n > maxWindowTextChars {
		n = maxWindowTextChars
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func className(h windows.HWND) string {
	buf := make([]uint16, 256)
	n, _, _ := procGetClassNameW.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func isCloaked(h windows.HWND) bool {
	if procDwmGetWindowAttr.Find() != nil {
		return false
	}
	var cloaked uint32
	r, _, _ := procDwmGetWindowAttr.Call(uintptr(h), dwmwaCloaked, uintptr(unsafe.Pointer(&cloaked)), unsafe.Sizeof(cloaked))
	return r == 0 && cloaked != 0
}

func processName(h windows.HWND) string {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(h, &pid); err != nil || pid == 0 {
		return ""
	}
	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(proc)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(proc, 0, &buf[0], &size); err != nil {
		return ""
	}
	return AppNameFromPath(windows.UTF16ToString(buf[:size]))
}

// windowIcon walks small, class small, big, class big.
func windowIcon(h windows.HWND) uintptr {
	if icon := sendGetIcon(h, iconSmall); icon != 0 {
		return icon
	}
	if icon := classIcon(h, gclpHIconSm); icon != 0 {
		return icon
	}
	if icon := sendGetIcon(h, iconBig); icon != 0 {
		return icon
	}
	return classIcon(h, gclpHIcon)
}

func sendGetIcon(h windows.HWND, kind uintptr) uintptr {
	var result uintptr
	r, _, _ := procSendMessageTimeoutW.Call(uintptr(h), wmGetIcon, kind, 0, smtoAbortIfHung, iconTimeoutMs, uintptr(unsafe.Pointer(&result)))
	if r == 0 {
		return 0
	}
	return result
}

func classIcon(h windows.HWND, index int32) uintptr {
	if procGetClassLongPtrW.Find() != nil {
		return 0
	}
	r, _, _ := procGetClassLongPtrW.Call(uintptr(h), uintptr(index))
	return r
}

func iconPNG(h windows.HWND) []byte {
	icon := windowIcon(h)
	if icon == 0 {
		return nil
	}
	img, err := renderIcon(icon, iconRenderSize)
	if err != nil {
		log.Printf("Icon render failed for %s: %v", FormatID(uintptr(h)), err)
		return nil
	}
	data, err := screenshot.Encode(img)
	if err != nil {
		return nil
	}
	return data
}

func renderIcon(icon uintptr, size int) (*image.RGBA, error) {
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
	bmp, bits, err := s.DIBSection(mem, size, size)
	if err != nil {
		return nil, err
	}
	s.Select(mem, win.HGDIOBJ(bmp))

	r, _, _ := procDrawIconEx.Call(uintptr(mem), 0, 0, icon, uintptr(size), uintptr(size), 0, 0, diNormal)
	if r == 0 {
		return nil, errors.New("DrawIconEx failed")
	}
	img := gdi.FromBGRA(bits, size, size)
	gdi.ForceOpaque(img)
	return img, nil
}
