//go:build windows

package notification

import (
	"log"
	"syscall"

	"github.com/lxn/win"
)

// ShowBlockingError displays a system-modal error box and waits for it to be
// dismissed.
func ShowBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
	messageBox(title, message, win.MB_OK|win.MB_ICONERROR|win.MB_SYSTEMMODAL)
}

// ShowInfo displays an information box and waits for it to be dismissed.
func ShowInfo(title, message string) {
	messageBox(title, message, win.MB_OK|win.MB_ICONINFORMATION|win.MB_SETFOREGROUND)
}

func messageBox(title, message string, flags uint32) {
	text, err := syscall.UTF16PtrFromString(truncate(message, maxMessageLen))
	if err != nil {
		log.Printf("notification: invalid message: %v", err)
		return
	}
	caption, err := syscall.UTF16PtrFromString(title)
	if err != nil {
		log.Printf("notification: invalid title: %v", err)
		return
	}
	win.MessageBox(0, text, caption, flags)
}
