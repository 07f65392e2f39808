package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeLogin   = "login"
	InboundTypeChatMsg = "chatmsg"

	OutboundTypeLogin      = "login"
	OutboundTypeChatMsg    = "chatmsg"
	OutboundTypeDisconnect = "disconnect"
)

// LoginData is sent by the client to authenticate. Either Username or Key is
// set; Password is ignored when Key is present.
type LoginData struct {
	Username string `json:"username,omitempty"`
	Key      string `json:"key,omitempty"`
	Password string `json:"password"`
}

// ChatMsgData is a chat message from the client. Channel is checked for
// presence but otherwise unused; there is a single shared room.
type ChatMsgData struct {
	Message string `json:"message"`
	Channel string `json:"channel"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// LoginResult acknowledges a login attempt.
type LoginResult struct {
	IsLoggedIn bool `json:"isLoggedIn"`
}

// ChatMsg is a broadcast message or server notice as delivered to clients.
type ChatMsg struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Date     string `json:"date"` // mm/dd/yyyy
	Time     string `json:"time"` // hh:mm:ss
	Channel  string `json:"channel"`
}
