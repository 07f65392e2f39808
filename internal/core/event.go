package core

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventLoginResult acknowledges a login attempt.
	EventLoginResult EventKind = iota
	// EventChat delivers a chat message or server notice.
	EventChat
	// EventDisconnect tells the client its session was closed server-side.
	// Force-termination itself travels over Session.Done, not Events.
	EventDisconnect
)

// Event is sent to sessions to describe what happened in the system.
type Event struct {
	Kind     EventKind
	LoggedIn bool
	Message  Message
}
