// Package notification shows modal message boxes for errors the user has to
// acknowledge and for the tray's about box.
package notification

import "unicode/utf8"

const maxMessageLen = 600

// truncate shortens text to at most max runes, marking the cut.
func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "..."
}
