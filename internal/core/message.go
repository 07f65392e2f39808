package core

import (
	"strings"
	"time"
)

// SystemSender is the reserved sender label for server notices.
const SystemSender = "Server"

// Message is the domain model for a chat message.
type Message struct {
	Sender  string
	Text    string
	Date    string // mm/dd/yyyy
	Time    string // hh:mm:ss
	Channel string
}

// Stamp formats a timestamp into the wire date and time fields.
func Stamp(t time.Time) (date, clock string) {
	return t.Format("01/02/2006"), t.Format("15:04:05")
}

// sanitizeIdentity strips characters that could confuse directory filters
// or ban-table keys from a submitted username.
func sanitizeIdentity(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '(', ')', '\\':
			return -1
		}
		return r
	}, s)
}

// sanitizeNick strips whitespace and the identity-unsafe characters from a
// requested nickname.
func sanitizeNick(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '(', ')', '\\', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
