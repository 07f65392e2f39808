package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandLogin starts the authentication handshake.
	CommandLogin CommandKind = iota
	// CommandChat delivers a chat line or slash-command.
	CommandChat
)

// LoginRequest carries the credentials from a login frame. Either Username
// or Key is set; Password is ignored on the bot-key path.
type LoginRequest struct {
	Username string
	Key      string
	Password string
}

// Command represents an action requested by a session.
type Command struct {
	Kind    CommandKind
	Login   LoginRequest
	Text    string
	Channel string

	// set by the session pump before the command reaches the hub loop
	session *Session
}
