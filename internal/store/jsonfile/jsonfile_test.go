package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/avolkov/relaychat-server/internal/store"
)

func TestNewCreatesEmptyTables(t *testing.T) {
	dir := t.TempDir()

	if _, err := New(dir); err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, name := range []string{"bans.json", "nicknames.json", "botkeys.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != "{}\n" {
			t.Fatalf("%s = %q, want empty object", name, data)
		}
	}
}

func TestMutationsSurviveReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ban := &store.BanRecord{
		Current: true,
		Date:    "01/02/2024",
		Time:    "10:00:00",
		By:      "admin1",
		History: []store.BanStamp{{Date: "12/31/2023", Time: "09:00:00", By: "admin2"}},
	}
	if err := s.PutBan(ctx, "jdoe", ban); err != nil {
		t.Fatalf("PutBan: %v", err)
	}
	if err := s.PutNick(ctx, "alice", "wonderland"); err != nil {
		t.Fatalf("PutNick: %v", err)
	}
	if err := s.PutBotKey(ctx, "alice", "abc123"); err != nil {
		t.Fatalf("PutBotKey: %v", err)
	}

	// Every mutation is flushed, so a fresh store sees everything.
	reloaded, err := New(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	rec, err := reloaded.GetBan(ctx, "jdoe")
	if err != nil || rec == nil {
		t.Fatalf("GetBan: %+v, %v", rec, err)
	}
	if !rec.Current || rec.By != "admin1" || len(rec.History) != 1 || rec.History[0].By != "admin2" {
		t.Fatalf("unexpected ban record: %+v", rec)
	}

	nick, err := reloaded.GetNick(ctx, "alice")
	if err != nil || nick != "wonderland" {
		t.Fatalf("GetNick = %q, %v", nick, err)
	}

	owner, err := reloaded.NickOwner(ctx, "wonderland")
	if err != nil || owner != "alice" {
		t.Fatalf("NickOwner = %q, %v", owner, err)
	}

	identity, err := reloaded.IdentityForKey(ctx, "abc123")
	if err != nil || identity != "alice" {
		t.Fatalf("IdentityForKey = %q, %v", identity, err)
	}
}

func TestGetBanReturnsNilWhenAbsent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec, err := s.GetBan(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetBan: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestGetBanReturnsCopy(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := s.PutBan(ctx, "jdoe", &store.BanRecord{Current: true, By: "admin1"}); err != nil {
		t.Fatalf("PutBan: %v", err)
	}

	rec, _ := s.GetBan(ctx, "jdoe")
	rec.By = "mutated"

	again, _ := s.GetBan(ctx, "jdoe")
	if again.By != "admin1" {
		t.Fatalf("GetBan leaked internal record")
	}
}
