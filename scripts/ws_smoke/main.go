// Command ws_smoke logs in to a running relaychat server, sends one message
// and prints everything received until the timeout. Handy for poking at a
// dev instance without a real client.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/avolkov/relaychat-server/internal/proto"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "", "directory username")
	password := flag.String("password", "", "directory password")
	key := flag.String("key", "", "bot key (used instead of user/password)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *user == "" && *key == "" {
		log.Fatal("either -user or -key is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(frameType string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Fatalf("marshal %s: %v", frameType, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
			log.Fatalf("send %s: %v", frameType, err)
		}
	}

	send(proto.InboundTypeLogin, proto.LoginData{
		Username: *user,
		Key:      *key,
		Password: *password,
	})

	sent := false
	for {
		var outbound struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			log.Fatalf("read: %v", err)
		}

		switch outbound.Type {
		case proto.OutboundTypeLogin:
			var result proto.LoginResult
			if err := json.Unmarshal(outbound.Data, &result); err != nil {
				log.Fatalf("unmarshal login result: %v", err)
			}
			if !result.IsLoggedIn {
				log.Fatal("login rejected")
			}
			fmt.Println("logged in")
			if !sent {
				send(proto.InboundTypeChatMsg, proto.ChatMsgData{Message: *text, Channel: "#general"})
				sent = true
			}
		case proto.OutboundTypeChatMsg:
			var msg proto.ChatMsg
			if err := json.Unmarshal(outbound.Data, &msg); err != nil {
				fmt.Printf("raw: %s\n", outbound.Data)
				continue
			}
			fmt.Printf("[%s %s] %s: %s\n", msg.Date, msg.Time, msg.Username, msg.Message)
		case proto.OutboundTypeDisconnect:
			fmt.Println("server closed the session")
			return
		default:
			fmt.Printf("unknown frame type %q\n", outbound.Type)
		}
	}
}
