// Package windowlist enumerates capturable top-level windows.
package windowlist

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidID is returned for window ids that do not parse.
var ErrInvalidID = errors.New("invalid window id")

// Descriptor describes one capturable window.
type Descriptor struct {
	Title   string `json:"title"`
	ID      string `json:"id"`
	AppName string `json:"appName,omitempty"`
	Icon    []byte `json:"icon,omitempty"`
}

// FormatID renders a window handle as an opaque id string.
func FormatID(hwnd uintptr) string {
	return fmt.Sprintf("%016X", uint64(hwnd))
}

// ParseID parses an id produced by FormatID. A 0x prefix is accepted.
func ParseID(id string) (uintptr, error) {
	s := strings.TrimSpace(id)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return uintptr(v), nil
}

// CleanTitle strips control and format characters plus box-drawing and
// block-element glyphs, then trims surrounding space.
func CleanTitle(title string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		case r >= 0x2500 && r <= 0x259F:
			return -1
		}
		return r
	}, title))
}

// AppNameFromPath returns the executable's base name without extension.
func AppNameFromPath(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndex(path, "."); i > 0 {
		path = path[:i]
	}
	return path
}

const (
	MinWidth  = 100
	MinHeight = 50
)

var shellClasses = map[string]bool{
	"Shell_TrayWnd":          true,
	"Shell_SecondaryTrayWnd": true,
	"Progman":                true,
	"WorkerW":                true,
}

// Candidate is the raw information collected for one top-level window.
type Candidate struct {
	Title     string
	ClassName string
	Visible   bool
	Minimized bool
	Cloaked   bool
	Bounds    image.Rectangle
}

// IsShellClass reports whether class belongs to the taskbar or desktop.
func IsShellClass(class string) bool { return shellClasses[class] }

// Capturable applies the enumeration filters to c.
func Capturable(c Candidate) bool {
	if !c.Visible || c.Minimized || c.Cloaked {
		return false
	}
	if CleanTitle(c.Title) == "" {
		return false
	}
	if IsShellClass(c.ClassName) {
		return false
	}
	return c.Bounds.Dx() >= MinWidth && c.Bounds.Dy() >= MinHeight
}
