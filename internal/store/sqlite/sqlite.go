package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avolkov/relaychat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS bans (
	identity  TEXT PRIMARY KEY,
	active    BOOLEAN NOT NULL,
	date      TEXT NOT NULL,
	time      TEXT NOT NULL,
	issued_by TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ban_history (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	identity  TEXT NOT NULL,
	date      TEXT NOT NULL,
	time      TEXT NOT NULL,
	issued_by TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS nicknames (
	identity TEXT PRIMARY KEY,
	nick     TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS botkeys (
	identity TEXT PRIMARY KEY,
	secret   TEXT NOT NULL UNIQUE
);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetBan returns the ban record for an identity, or nil if none exists.
func (s *SQLiteStore) GetBan(ctx context.Context, identity string) (*store.BanRecord, error) {
	rec := &store.BanRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT active, date, time, issued_by FROM bans WHERE identity = ?`, identity,
	).Scan(&rec.Current, &rec.Date, &rec.Time, &rec.By)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ban: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, time, issued_by FROM ban_history WHERE identity = ? ORDER BY id`, identity)
	if err != nil {
		return nil, fmt.Errorf("query ban history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st store.BanStamp
		if err := rows.Scan(&st.Date, &st.Time, &st.By); err != nil {
			return nil, fmt.Errorf("scan ban history: %w", err)
		}
		rec.History = append(rec.History, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ban history: %w", err)
	}

	return rec, nil
}

// PutBan stores the ban record for an identity, replacing any previous one.
func (s *SQLiteStore) PutBan(ctx context.Context, identity string, rec *store.BanRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bans (identity, active, date, time, issued_by) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET active = excluded.active,
		 date = excluded.date, time = excluded.time, issued_by = excluded.issued_by`,
		identity, rec.Current, rec.Date, rec.Time, rec.By); err != nil {
		return fmt.Errorf("upsert ban: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ban_history WHERE identity = ?`, identity); err != nil {
		return fmt.Errorf("clear ban history: %w", err)
	}
	for _, st := range rec.History {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ban_history (identity, date, time, issued_by) VALUES (?, ?, ?, ?)`,
			identity, st.Date, st.Time, st.By); err != nil {
			return fmt.Errorf("insert ban history: %w", err)
		}
	}

	return tx.Commit()
}

// GetNick returns the stored nickname for an identity, or "" if none.
func (s *SQLiteStore) GetNick(ctx context.Context, identity string) (string, error) {
	var nick string
	err := s.db.QueryRowContext(ctx,
		`SELECT nick FROM nicknames WHERE identity = ?`, identity).Scan(&nick)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query nick: %w", err)
	}
	return nick, nil
}

// NickOwner returns the identity owning the given nickname, or "" if free.
func (s *SQLiteStore) NickOwner(ctx context.Context, nick string) (string, error) {
	var identity string
	err := s.db.QueryRowContext(ctx,
		`SELECT identity FROM nicknames WHERE nick = ?`, nick).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query nick owner: %w", err)
	}
	return identity, nil
}

// PutNick stores the nickname for an identity.
func (s *SQLiteStore) PutNick(ctx context.Context, identity, nick string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nicknames (identity, nick) VALUES (?, ?)
		 ON CONFLICT(identity) DO UPDATE SET nick = excluded.nick`,
		identity, nick)
	if err != nil {
		return fmt.Errorf("upsert nick: %w", err)
	}
	return nil
}

// GetBotKey returns the stored bot credential for an identity, or "" if none.
func (s *SQLiteStore) GetBotKey(ctx context.Context, identity string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT secret FROM botkeys WHERE identity = ?`, identity).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query bot key: %w", err)
	}
	return key, nil
}

// IdentityForKey returns the identity a bot credential belongs to, or "" if unknown.
func (s *SQLiteStore) IdentityForKey(ctx context.Context, key string) (string, error) {
	var identity string
	err := s.db.QueryRowContext(ctx,
		`SELECT identity FROM botkeys WHERE secret = ?`, key).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query bot key identity: %w", err)
	}
	return identity, nil
}

// PutBotKey stores the bot credential for an identity.
func (s *SQLiteStore) PutBotKey(ctx context.Context, identity, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO botkeys (identity, secret) VALUES (?, ?)
		 ON CONFLICT(identity) DO UPDATE SET secret = excluded.secret`,
		identity, key)
	if err != nil {
		return fmt.Errorf("upsert bot key: %w", err)
	}
	return nil
}
