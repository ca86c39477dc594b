package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidShortcut is returned for shortcut strings that do not parse.
var ErrInvalidShortcut = errors.New("invalid shortcut")

// Modifiers is a bit mask using the Win32 MOD_* values.
type Modifiers uint32

const (
	ModAlt   Modifiers = 0x0001
	ModCtrl  Modifiers = 0x0002
	ModShift Modifiers = 0x0004
	ModWin   Modifiers = 0x0008
)

// Has reports whether every bit of m2 is set in m.
func (m Modifiers) Has(m2 Modifiers) bool { return m&m2 == m2 }

func (m Modifiers) String() string {
	var parts []string
	if m.Has(ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if m.Has(ModShift) {
		parts = append(parts, "Shift")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "Alt")
	}
	if m.Has(ModWin) {
		parts = append(parts, "Win")
	}
	return strings.Join(parts, "+")
}

// Key is the non-modifier part of a shortcut.
type Key struct {
	Name string
	VK   uint16
}

// Shortcut is a parsed modifier+key combination.
type Shortcut struct {
	Modifiers Modifiers
	Key       Key
}

func (s Shortcut) String() string {
	if s.Modifiers == 0 {
		return s.Key.Name
	}
	return s.Modifiers.String() + "+" + s.Key.Name
}

var modifierTokens = map[string]Modifiers{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"win":     ModWin,
	"super":   ModWin,
}

var keyTable = buildKeyTable()

func buildKeyTable() map[string]Key {
	t := map[string]Key{}
	for c := 'a'; c <= 'z'; c++ {
		t[string(c)] = Key{Name: strings.ToUpper(string(c)), VK: uint16('A' + (c - 'a'))}
	}
	for c := '0'; c <= '9'; c++ {
		t[string(c)] = Key{Name: string(c), VK: uint16(c)}
	}
	for i := 1; i <= 12; i++ {
		t[fmt.Sprintf("f%d", i)] = Key{Name: fmt.Sprintf("F%d", i), VK: uint16(0x70 + i - 1)}
	}
	named := []struct {
		names []string
		key   Key
	}{
		{[]string{"space"}, Key{"Space", 0x20}},
		{[]string{"enter", "return"}, Key{"Enter", 0x0D}},
		{[]string{"escape", "esc"}, Key{"Escape", 0x1B}},
		{[]string{"tab"}, Key{"Tab", 0x09}},
		{[]string{"backspace", "back"}, Key{"Backspace", 0x08}},
		{[]string{"delete", "del"}, Key{"Delete", 0x2E}},
		{[]string{"insert", "ins"}, Key{"Insert", 0x2D}},
		{[]string{"home"}, Key{"Home", 0x24}},
		{[]string{"end"}, Key{"End", 0x23}},
		{[]string{"pageup", "pgup"}, Key{"PageUp", 0x21}},
		{[]string{"pagedown", "pgdn"}, Key{"PageDown", 0x22}},
		{[]string{"left", "arrowleft"}, Key{"Left", 0x25}},
		{[]string{"up", "arrowup"}, Key{"Up", 0x26}},
		{[]string{"right", "arrowright"}, Key{"Right", 0x27}},
		{[]string{"down", "arrowdown"}, Key{"Down", 0x28}},
	}
	for _, n := range named {
		for _, name := range n.names {
			t[name] = n.key
		}
	}
	return t
}

// ParseShortcut parses strings such as "Ctrl+Shift+A" or "alt f4".
// Tokens are case-insensitive and separated by '+' or whitespace. Every
// token but the last must be a modifier; the last must be a known key.
func ParseShortcut(spec string) (Shortcut, error) {
	tokens := strings.FieldsFunc(strings.ToLower(spec), func(r rune) bool {
		return r == '+' || unicode.IsSpace(r)
	})
	if len(tokens) == 0 {
		return Shortcut{}, fmt.Errorf("%w: empty", ErrInvalidShortcut)
	}

	var s Shortcut
	for _, tok := range tokens[:len(tokens)-1] {
		mod, ok := modifierTokens[tok]
		if !ok {
			return Shortcut{}, fmt.Errorf("%w: %q is not a modifier", ErrInvalidShortcut, tok)
		}
		s.Modifiers |= mod
	}

	last := tokens[len(tokens)-1]
	key, ok := keyTable[last]
	if !ok {
		return Shortcut{}, fmt.Errorf("%w: unknown key %q", ErrInvalidShortcut, last)
	}
	s.Key = key
	return s, nil
}

// Rawcodes maps a shortcut onto groups of hook rawcodes. Each group is
// satisfied when any of its codes is held: modifiers accept both the left
// and right key.
func (s Shortcut) Rawcodes() [][]uint16 {
	var groups [][]uint16
	if s.Modifiers.Has(ModCtrl) {
		groups = append(groups, []uint16{162, 163}) // VK_LCONTROL, VK_RCONTROL
	}
	if s.Modifiers.Has(ModShift) {
		groups = append(groups, []uint16{160, 161}) // VK_LSHIFT, VK_RSHIFT
	}
	if s.Modifiers.Has(ModAlt) {
		groups = append(groups, []uint16{164, 165}) // VK_LMENU, VK_RMENU
	}
	if s.Modifiers.Has(ModWin) {
		groups = append(groups, []uint16{91, 92}) // VK_LWIN, VK_RWIN
	}
	return append(groups, []uint16{s.Key.VK})
}
