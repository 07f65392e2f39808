package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/relaychat-server/internal/directory"
	"github.com/avolkov/relaychat-server/internal/store"
	"github.com/avolkov/relaychat-server/internal/store/jsonfile"
)

// fakeDirectory authenticates against in-memory credential and profile maps.
// err and profileErr simulate directory outages on the two operations.
type fakeDirectory struct {
	passwords  map[string]string
	givenNames map[string]string
	err        error
	profileErr error
}

func (f *fakeDirectory) Authenticate(_ context.Context, identity, secret string) (*directory.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if pw, ok := f.passwords[identity]; !ok || pw != secret {
		return nil, directory.ErrInvalidCredentials
	}
	return &directory.Result{Identity: identity, Handle: "uid=" + identity}, nil
}

func (f *fakeDirectory) FetchProfile(_ context.Context, res *directory.Result) (string, error) {
	if f.profileErr != nil {
		return "", f.profileErr
	}
	return f.givenNames[res.Identity], nil
}

type testEnv struct {
	hub   *Hub
	store store.Store
	dir   *fakeDirectory
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	st, err := jsonfile.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	dir := &fakeDirectory{
		passwords: map[string]string{
			"admin1": "adminpw",
			"alice":  "alicepw",
			"bob":    "bobpw",
			"jdoe":   "jdoepw",
		},
		givenNames: map[string]string{
			"admin1": "Admin",
			"alice":  "Alice",
			"bob":    "Bob",
		},
	}

	hub := NewHub(st, dir, opts, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return &testEnv{hub: hub, store: st, dir: dir}
}

// login connects a session and completes the handshake, failing the test if
// the server does not accept the credentials.
func (e *testEnv) login(t *testing.T, username, password string) *Session {
	t.Helper()

	s := e.hub.Connect()
	s.Commands <- &Command{Kind: CommandLogin, Login: LoginRequest{Username: username, Password: password}}

	ev := mustEvent(t, s.Events, EventLoginResult)
	if !ev.LoggedIn {
		t.Fatalf("login as %s rejected", username)
	}
	return s
}

func chat(s *Session, text string) {
	s.Commands <- &Command{Kind: CommandChat, Text: text}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNotice drains events until a chat event whose text contains substr.
func mustNotice(t *testing.T, ch <-chan *Event, substr string) Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == EventChat && strings.Contains(ev.Message.Text, substr) {
				return ev.Message
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected notice containing %q not received", substr)
	return Message{}
}

// mustDone fails unless the session's done channel closes in time.
func mustDone(t *testing.T, s *Session) {
	t.Helper()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session was not terminated")
	}
}

// assertNoEvent verifies the channel stays quiet for a short window.
func assertNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
