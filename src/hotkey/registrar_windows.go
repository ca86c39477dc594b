//go:build windows

package hotkey

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const (
	wmHotkey    = 0x0312
	wmCommand   = win.WM_APP + 1
	modNoRepeat = 0x4000
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
)

type command struct {
	register bool
	id       int
	shortcut Shortcut
	reply    chan error
}

// nativeRegistrar registers thread hotkeys with RegisterHotKey. All calls
// run on one locked OS thread that also pumps WM_HOTKEY.
type nativeRegistrar struct {
	threadID uint32
	commands chan command
	events   chan int
	stopped  chan struct{}
	once     sync.Once
}

// NewRegistrar starts the hotkey thread.
func NewRegistrar() (Registrar, error) {
	r := &nativeRegistrar{
		commands: make(chan command, 16),
		events:   make(chan int, 8),
		stopped:  make(chan struct{}),
	}
	ready := make(chan error, 1)
	go r.loop(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return r, nil
}

func (r *nativeRegistrar) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.stopped)
	defer close(r.events)

	// Force creation of the thread message queue before anyone posts to it.
	var msg win.MSG
	win.PeekMessage(&msg, 0, win.WM_USER, win.WM_USER, win.PM_NOREMOVE)
	r.threadID = windows.GetCurrentThreadId()
	ready <- nil

	live := map[int]bool{}
	defer func() {
		for id := range live {
			procUnregisterHotKey.Call(0, uintptr(id))
		}
	}()

	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			log.Printf("Hotkey thread stopping (GetMessage=%d)", ret)
			return
		}
		switch msg.Message {
		case wmHotkey:
			select {
			case r.events <- int(msg.WParam):
			default:
				log.Printf("Hotkey event 0x%X dropped, consumer busy", msg.WParam)
			}
		case wmCommand:
			r.drain(live)
		}
	}
}

func (r *nativeRegistrar) drain(live map[int]bool) {
	for {
		select {
		case cmd := <-r.commands:
			cmd.reply <- r.apply(cmd, live)
		default:
			return
		}
	}
}

func (r *nativeRegistrar) apply(cmd command, live map[int]bool) error {
	if cmd.register {
		mods := uintptr(cmd.shortcut.Modifiers) | modNoRepeat
		ret, _, err := procRegisterHotKey.Call(0, uintptr(cmd.id), mods, uintptr(cmd.shortcut.Key.VK))
		if ret == 0 {
			return fmt.Errorf("RegisterHotKey %s: %w", cmd.shortcut, err)
		}
		live[cmd.id] = true
		return nil
	}
	if !live[cmd.id] {
		return nil
	}
	ret, _, err := procUnregisterHotKey.Call(0, uintptr(cmd.id))
	if ret == 0 {
		return fmt.Errorf("UnregisterHotKey 0x%X: %w", cmd.id, err)
	}
	delete(live, cmd.id)
	return nil
}

func (r *nativeRegistrar) send(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case r.commands <- cmd:
	case <-r.stopped:
		return ErrClosed
	}
	ret, _, err := procPostThreadMessageW.Call(uintptr(r.threadID), wmCommand, 0, 0)
	if ret == 0 {
		return fmt.Errorf("PostThreadMessage: %w", err)
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-r.stopped:
		return ErrClosed
	}
}

func (r *nativeRegistrar) Register(id int, s Shortcut) error {
	return r.send(command{register: true, id: id, shortcut: s})
}

func (r *nativeRegistrar) Unregister(id int) error {
	return r.send(command{id: id})
}

func (r *nativeRegistrar) Events() <-chan int { return r.events }

func (r *nativeRegistrar) Close() error {
	var err error
	r.once.Do(func() {
		ret, _, callErr := procPostThreadMessageW.Call(uintptr(r.threadID), win.WM_QUIT, 0, 0)
		if ret == 0 {
			err = fmt.Errorf("PostThreadMessage WM_QUIT: %w", callErr)
			return
		}
		<-r.stopped
	})
	return err
}
