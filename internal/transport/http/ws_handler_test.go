package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/avolkov/relaychat-server/internal/config"
	"github.com/avolkov/relaychat-server/internal/core"
	"github.com/avolkov/relaychat-server/internal/directory"
	"github.com/avolkov/relaychat-server/internal/proto"
	"github.com/avolkov/relaychat-server/internal/store/jsonfile"
)

type staticDirectory struct {
	passwords  map[string]string
	givenNames map[string]string
}

func (d *staticDirectory) Authenticate(_ context.Context, identity, secret string) (*directory.Result, error) {
	if pw, ok := d.passwords[identity]; ok && pw == secret {
		return &directory.Result{Identity: identity, Handle: "uid=" + identity}, nil
	}
	return nil, directory.ErrInvalidCredentials
}

func (d *staticDirectory) FetchProfile(_ context.Context, res *directory.Result) (string, error) {
	return d.givenNames[res.Identity], nil
}

func startTestServer(t *testing.T) (*httptest.Server, context.CancelFunc) {
	t.Helper()

	st, err := jsonfile.New(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dir := &staticDirectory{
		passwords:  map[string]string{"alice": "alicepw", "bob": "bobpw"},
		givenNames: map[string]string{"alice": "Alice", "bob": "Bob"},
	}

	logger := zerolog.Nop()
	hub := core.NewHub(st, dir, core.Options{}, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		RateLimit:         100,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, cancel
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendLogin(t *testing.T, ctx context.Context, conn *websocket.Conn, user, password string) {
	t.Helper()

	payload, _ := json.Marshal(proto.LoginData{Username: user, Password: password})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeLogin, Data: payload}); err != nil {
		t.Fatalf("write login: %v", err)
	}
}

func sendChat(t *testing.T, ctx context.Context, conn *websocket.Conn, text string) {
	t.Helper()

	payload, _ := json.Marshal(proto.ChatMsgData{Message: text, Channel: "#general"})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeChatMsg, Data: payload}); err != nil {
		t.Fatalf("write chatmsg: %v", err)
	}
}

type outboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readChatFrom discards notices until a chatmsg from the given sender arrives.
func readChatFrom(t *testing.T, ctx context.Context, conn *websocket.Conn, sender string) proto.ChatMsg {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read outbound: %v", err)
		}
		if frame.Type != proto.OutboundTypeChatMsg {
			continue
		}
		var msg proto.ChatMsg
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			t.Fatalf("unmarshal chatmsg: %v", err)
		}
		if msg.Username == sender {
			return msg
		}
	}
}

func readLoginResult(t *testing.T, ctx context.Context, conn *websocket.Conn) bool {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read outbound: %v", err)
		}
		if frame.Type != proto.OutboundTypeLogin {
			continue
		}
		var result proto.LoginResult
		if err := json.Unmarshal(frame.Data, &result); err != nil {
			t.Fatalf("unmarshal login result: %v", err)
		}
		return result.IsLoggedIn
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer cancel()

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketLoginAndMessage(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer cancel()

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	connA := dialWS(t, ctx, ts)
	connB := dialWS(t, ctx, ts)

	sendLogin(t, ctx, connA, "alice", "alicepw")
	if !readLoginResult(t, ctx, connA) {
		t.Fatal("alice login rejected")
	}

	sendLogin(t, ctx, connB, "bob", "bobpw")
	if !readLoginResult(t, ctx, connB) {
		t.Fatal("bob login rejected")
	}

	sendChat(t, ctx, connA, "hi there")

	msg := readChatFrom(t, ctx, connB, "Alice")
	if msg.Message != "hi there" {
		t.Fatalf("unexpected message text: %q", msg.Message)
	}
	if msg.Channel != "#general" {
		t.Fatalf("unexpected channel: %q", msg.Channel)
	}
	if msg.Date == "" || msg.Time == "" {
		t.Fatalf("missing timestamp: %+v", msg)
	}
}

func TestWebSocketBadPassword(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer cancel()

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := dialWS(t, ctx, ts)

	sendLogin(t, ctx, conn, "alice", "wrong")
	if readLoginResult(t, ctx, conn) {
		t.Fatal("expected login to be rejected")
	}
}

func TestWebSocketMalformedFrameIgnored(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer cancel()

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := dialWS(t, ctx, ts)

	// Unknown type and missing fields are dropped server side; the
	// connection stays usable afterwards.
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: "bogus"}); err != nil {
		t.Fatalf("write bogus frame: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeLogin, Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("write empty login: %v", err)
	}

	sendLogin(t, ctx, conn, "alice", "alicepw")
	if !readLoginResult(t, ctx, conn) {
		t.Fatal("login after malformed frames rejected")
	}
}
