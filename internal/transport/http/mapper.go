package http

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avolkov/relaychat-server/internal/core"
	"github.com/avolkov/relaychat-server/internal/proto"
)

var errMalformed = errors.New("malformed payload")

// inboundToCommand maps a wire frame to a core command. Malformed frames are
// reported as errors; the caller logs and drops them without a client notice.
func inboundToCommand(inbound proto.Inbound) (*core.Command, error) {
	switch inbound.Type {
	case proto.InboundTypeLogin:
		var login proto.LoginData
		if err := json.Unmarshal(inbound.Data, &login); err != nil {
			return nil, fmt.Errorf("decode login: %w", err)
		}
		if login.Username == "" && login.Key == "" {
			return nil, fmt.Errorf("%w: login without username or key", errMalformed)
		}
		return &core.Command{
			Kind: core.CommandLogin,
			Login: core.LoginRequest{
				Username: login.Username,
				Key:      login.Key,
				Password: login.Password,
			},
		}, nil
	case proto.InboundTypeChatMsg:
		var msg proto.ChatMsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, fmt.Errorf("decode chatmsg: %w", err)
		}
		if msg.Message == "" || msg.Channel == "" {
			return nil, fmt.Errorf("%w: chatmsg without message or channel", errMalformed)
		}
		return &core.Command{
			Kind:    core.CommandChat,
			Text:    msg.Message,
			Channel: msg.Channel,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", errMalformed, inbound.Type)
	}
}

// outboundFromEvent maps a core event to its wire frame.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventLoginResult:
		return proto.Outbound{
			Type: proto.OutboundTypeLogin,
			Data: proto.LoginResult{IsLoggedIn: event.LoggedIn},
		}
	case core.EventChat:
		return proto.Outbound{
			Type: proto.OutboundTypeChatMsg,
			Data: proto.ChatMsg{
				Username: event.Message.Sender,
				Message:  event.Message.Text,
				Date:     event.Message.Date,
				Time:     event.Message.Time,
				Channel:  event.Message.Channel,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeDisconnect}
	}
}
