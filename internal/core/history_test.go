package core

import (
	"fmt"
	"testing"
)

func TestHistoryEvictsOldestFirst(t *testing.T) {
	const max = 5

	h := NewHistory(max)
	for i := 0; i < max+1; i++ {
		h.Append(Message{Text: fmt.Sprintf("msg-%d", i)})
	}

	if h.Len() != max {
		t.Fatalf("len = %d, want %d", h.Len(), max)
	}

	msgs := h.All()
	if msgs[0].Text != "msg-1" {
		t.Fatalf("oldest surviving message = %q, want msg-1", msgs[0].Text)
	}
	if msgs[len(msgs)-1].Text != fmt.Sprintf("msg-%d", max) {
		t.Fatalf("newest message = %q", msgs[len(msgs)-1].Text)
	}
}

func TestHistoryAllReturnsCopy(t *testing.T) {
	h := NewHistory(3)
	h.Append(Message{Text: "one"})

	msgs := h.All()
	msgs[0].Text = "mutated"

	if h.All()[0].Text != "one" {
		t.Fatalf("All leaked internal storage")
	}
}

func TestSanitizeNick(t *testing.T) {
	cases := map[string]string{
		"al(ice)*":    "alice",
		"plain":       "plain",
		"with space":  "withspace",
		`back\slash`:  "backslash",
		"\ttabbed\n":  "tabbed",
		"(((":         "",
	}
	for in, want := range cases {
		if got := sanitizeNick(in); got != want {
			t.Errorf("sanitizeNick(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeIdentity(t *testing.T) {
	if got := sanitizeIdentity(`j*do(e)\`); got != "jdoe" {
		t.Fatalf("sanitizeIdentity = %q, want jdoe", got)
	}
}
