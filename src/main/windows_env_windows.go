//go:build windows

package main

import (
	"log"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

type dpiMode struct {
	name string
	dll  string
	proc string
	args []uintptr
	// ok reports success from the raw return value.
	ok func(ret uintptr) bool
}

// dpiAwarenessContextPerMonitorV2 is DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2.
const dpiAwarenessContextPerMonitorV2 = ^uintptr(3)

// Tried in order; the first available entry point decides.
var dpiModes = []dpiMode{
	{"per-monitor v2", "user32.dll", "SetProcessDpiAwarenessContext", []uintptr{dpiAwarenessContextPerMonitorV2}, func(r uintptr) bool { return r != 0 }},
	{"per-monitor", "Shcore.dll", "SetProcessDpiAwareness", []uintptr{2}, func(r uintptr) bool { return r == 0 }},
	{"system", "user32.dll", "SetProcessDPIAware", nil, func(r uintptr) bool { return r != 0 }},
}

// enableDPIAwareness makes overlay pixels map 1:1 onto physical pixels.
func enableDPIAwareness() {
	for _, m := range dpiModes {
		proc := windows.NewLazySystemDLL(m.dll).NewProc(m.proc)
		if proc.Find() != nil {
			continue
		}
		ret, _, _ := proc.Call(m.args...)
		if m.ok(ret) {
			log.Printf("DPI: %s awareness enabled", m.name)
		} else {
			log.Printf("DPI: %s!%s returned %#x", m.dll, m.proc, ret)
		}
		return
	}
	log.Printf("DPI: no awareness API available")
}

// logMonitorConfiguration records the monitor layout the overlay will cover.
func logMonitorConfiguration() {
	vx, vy := win.GetSystemMetrics(win.SM_XVIRTUALSCREEN), win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)
	vw, vh := win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN), win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)
	log.Printf("MONITOR: %d monitor(s), virtual screen (%d,%d) %dx%d, primary %dx%d",
		win.GetSystemMetrics(win.SM_CMONITORS), vx, vy, vw, vh,
		win.GetSystemMetrics(win.SM_CXSCREEN), win.GetSystemMetrics(win.SM_CYSCREEN))
}
