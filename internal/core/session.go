package core

import "github.com/google/uuid"

// Session is the live representation of one connection. Identity and the
// authentication flags are fixed during the login handshake; only the hub
// loop touches them afterwards.
type Session struct {
	ID          string
	Identity    string
	DisplayName string

	Authenticated bool
	Admin         bool
	CustomNick    bool
	Bot           bool

	Commands chan *Command
	Events   chan *Event

	done           chan struct{}
	authenticating bool
}

func newSession() *Session {
	return &Session{
		ID:       uuid.NewString(),
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
		done:     make(chan struct{}),
	}
}

// Done is closed when the hub force-terminates the session. The transport
// must drop the connection once it fires; unlike Events it cannot fill up,
// so a kick always lands.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// terminate closes the done channel. Called from the hub loop only.
func (s *Session) terminate() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Session) terminated() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Label is the display name as it appears in broadcasts: custom nicknames
// are marked with a leading "~".
func (s *Session) Label() string {
	if s.CustomNick {
		return "~" + s.DisplayName
	}
	return s.DisplayName
}

// send queues an event without ever blocking the hub loop.
func (s *Session) send(ev *Event) {
	select {
	case s.Events <- ev:
	default:
		// Drop if slow consumer.
	}
}

func (s *Session) notice(text, date, clock, channel string) {
	s.send(&Event{Kind: EventChat, Message: Message{
		Sender:  SystemSender,
		Text:    text,
		Date:    date,
		Time:    clock,
		Channel: channel,
	}})
}
