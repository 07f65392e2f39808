package core

// History is the bounded FIFO of recent broadcast messages, replayed to
// sessions when they join.
type History struct {
	max  int
	msgs []Message
}

// NewHistory constructs a buffer holding at most max messages.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 50
	}
	return &History{max: max}
}

// Append inserts a message, evicting the oldest once the bound is exceeded.
func (h *History) Append(m Message) {
	h.msgs = append(h.msgs, m)
	if len(h.msgs) > h.max {
		h.msgs = h.msgs[1:]
	}
}

// All returns the buffered messages, oldest first.
func (h *History) All() []Message {
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len returns the number of buffered messages.
func (h *History) Len() int {
	return len(h.msgs)
}
