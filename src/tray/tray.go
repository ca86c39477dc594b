// Package tray owns the system tray icon and its menu.
package tray

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"screenshot-native/src/notification"

	"github.com/getlantern/systray"
)

// Config describes the tray menu. Nil callbacks hide their menu item.
type Config struct {
	Title            string
	Tooltip          string
	RegionHotkey     string
	FullscreenHotkey string

	OnCaptureRegion     func()
	OnCaptureFullScreen func()
	OnExit              func()
}

var (
	mu      sync.Mutex
	running bool

	lockOSThread   = runtime.LockOSThread
	unlockOSThread = runtime.UnlockOSThread
)

// Run shows the tray icon and blocks until Quit is called. The tray window
// and its message loop live on the calling goroutine's OS thread, which
// stays locked until Run returns.
func Run(cfg Config) {
	pinned(func() { run(cfg) })
}

// pinned runs fn with the goroutine locked to its OS thread.
func pinned(fn func()) {
	lockOSThread()
	defer unlockOSThread()
	fn()
}

func run(cfg Config) {
	mu.Lock()
	running = true
	mu.Unlock()

	quit := make(chan struct{})
	systray.Run(func() { onReady(cfg, quit) }, func() {
		close(quit)
		mu.Lock()
		running = false
		mu.Unlock()
		if cfg.OnExit != nil {
			cfg.OnExit()
		}
	})
}

// Quit removes the tray icon and makes Run return.
func Quit() {
	mu.Lock()
	defer mu.Unlock()
	if running {
		systray.Quit()
	}
}

// SetTooltip updates the tray tooltip, for example while a capture runs.
func SetTooltip(text string) {
	mu.Lock()
	defer mu.Unlock()
	if running {
		systray.SetTooltip(text)
	}
}

func onReady(cfg Config, quit <-chan struct{}) {
	icon, err := iconData()
	if err != nil {
		log.Printf("tray: icon render failed: %v", err)
	} else {
		systray.SetIcon(icon)
	}
	systray.SetTitle(cfg.Title)
	systray.SetTooltip(cfg.Tooltip)

	regionCh := make(chan struct{})
	fullCh := make(chan struct{})
	if cfg.OnCaptureRegion != nil {
		regionCh = systray.AddMenuItem(menuLabel("Capture Region", cfg.RegionHotkey), "Select a region to capture").ClickedCh
	}
	if cfg.OnCaptureFullScreen != nil {
		fullCh = systray.AddMenuItem(menuLabel("Capture Full Screen", cfg.FullscreenHotkey), "Copy the whole screen to the clipboard").ClickedCh
	}
	systray.AddSeparator()
	mAbout := systray.AddMenuItem("About", "About "+cfg.Title)
	mQuit := systray.AddMenuItem("Exit", "Quit the application")

	go func() {
		for {
			select {
			case <-regionCh:
				go cfg.OnCaptureRegion()
			case <-fullCh:
				go cfg.OnCaptureFullScreen()
			case <-mAbout.ClickedCh:
				go notification.ShowInfo("About "+cfg.Title, aboutText(cfg))
			case <-mQuit.ClickedCh:
				log.Printf("tray: exit requested")
				systray.Quit()
				return
			case <-quit:
				return
			}
		}
	}()
}

func menuLabel(title, hotkey string) string {
	if hotkey == "" {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, hotkey)
}

func aboutText(cfg Config) string {
	text := cfg.Title + "\n\nNative region and window capture."
	if cfg.RegionHotkey != "" {
		text += "\nRegion hotkey: " + cfg.RegionHotkey
	}
	if cfg.FullscreenHotkey != "" {
		text += "\nFull screen hotkey: " + cfg.FullscreenHotkey
	}
	return text
}
