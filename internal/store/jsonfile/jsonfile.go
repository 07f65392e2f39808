// Package jsonfile persists each table as one JSON object file, loaded at
// startup and rewritten in full after every mutation.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/avolkov/relaychat-server/internal/store"
)

const (
	bansFile    = "bans.json"
	nicksFile   = "nicknames.json"
	botKeysFile = "botkeys.json"
)

// Store implements store.Store on top of three JSON files under dir.
type Store struct {
	mu  sync.Mutex
	dir string

	bans    map[string]*store.BanRecord
	nicks   map[string]string
	botKeys map[string]string
}

// New loads the tables from dir, creating empty files for any that are absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dir:     dir,
		bans:    make(map[string]*store.BanRecord),
		nicks:   make(map[string]string),
		botKeys: make(map[string]string),
	}

	if err := loadTable(filepath.Join(dir, bansFile), &s.bans); err != nil {
		return nil, fmt.Errorf("load bans: %w", err)
	}
	if err := loadTable(filepath.Join(dir, nicksFile), &s.nicks); err != nil {
		return nil, fmt.Errorf("load nicknames: %w", err)
	}
	if err := loadTable(filepath.Join(dir, botKeysFile), &s.botKeys); err != nil {
		return nil, fmt.Errorf("load bot keys: %w", err)
	}

	return s, nil
}

// Close is a no-op; every mutation is already flushed to disk.
func (s *Store) Close() error { return nil }

// GetBan returns the ban record for an identity, or nil if none exists.
func (s *Store) GetBan(_ context.Context, identity string) (*store.BanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.bans[identity]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.History = append([]store.BanStamp(nil), rec.History...)
	return &cp, nil
}

// PutBan stores the ban record for an identity and rewrites the ban table.
func (s *Store) PutBan(_ context.Context, identity string, rec *store.BanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	cp.History = append([]store.BanStamp(nil), rec.History...)
	s.bans[identity] = &cp
	return saveTable(filepath.Join(s.dir, bansFile), s.bans)
}

// GetNick returns the stored nickname for an identity, or "" if none.
func (s *Store) GetNick(_ context.Context, identity string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nicks[identity], nil
}

// NickOwner returns the identity owning the given nickname, or "" if free.
func (s *Store) NickOwner(_ context.Context, nick string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for identity, n := range s.nicks {
		if n == nick {
			return identity, nil
		}
	}
	return "", nil
}

// PutNick stores the nickname for an identity and rewrites the nickname table.
func (s *Store) PutNick(_ context.Context, identity, nick string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nicks[identity] = nick
	return saveTable(filepath.Join(s.dir, nicksFile), s.nicks)
}

// GetBotKey returns the stored bot credential for an identity, or "" if none.
func (s *Store) GetBotKey(_ context.Context, identity string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.botKeys[identity], nil
}

// IdentityForKey returns the identity a bot credential belongs to, or "" if unknown.
func (s *Store) IdentityForKey(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for identity, k := range s.botKeys {
		if k == key {
			return identity, nil
		}
	}
	return "", nil
}

// PutBotKey stores the bot credential for an identity and rewrites the table.
func (s *Store) PutBotKey(_ context.Context, identity, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.botKeys[identity] = key
	return saveTable(filepath.Join(s.dir, botKeysFile), s.botKeys)
}

func loadTable(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(path, []byte("{}\n"), 0o644)
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func saveTable(path string, table any) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
