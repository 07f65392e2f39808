package store

import "context"

// BanStamp records who issued a ban and when.
type BanStamp struct {
	Date string `json:"date"`
	Time string `json:"time"`
	By   string `json:"by"`
}

// BanRecord is the ban state for one identity. History holds prior bans,
// archived when the identity is unbanned.
type BanRecord struct {
	Current bool       `json:"current"`
	Date    string     `json:"date"`
	Time    string     `json:"time"`
	By      string     `json:"by"`
	History []BanStamp `json:"history,omitempty"`
}

// BanStore handles ban persistence.
type BanStore interface {
	// GetBan returns the ban record for an identity, or nil if none exists.
	GetBan(ctx context.Context, identity string) (*BanRecord, error)

	// PutBan stores the ban record for an identity, replacing any previous one.
	PutBan(ctx context.Context, identity string, rec *BanRecord) error
}

// NickStore handles nickname persistence.
type NickStore interface {
	// GetNick returns the stored nickname for an identity, or "" if none.
	GetNick(ctx context.Context, identity string) (string, error)

	// NickOwner returns the identity owning the given nickname, or "" if free.
	NickOwner(ctx context.Context, nick string) (string, error)

	// PutNick stores the nickname for an identity.
	PutNick(ctx context.Context, identity, nick string) error
}

// BotKeyStore handles bot credential persistence.
type BotKeyStore interface {
	// GetBotKey returns the stored bot credential for an identity, or "" if none.
	GetBotKey(ctx context.Context, identity string) (string, error)

	// IdentityForKey returns the identity a bot credential belongs to, or "" if unknown.
	IdentityForKey(ctx context.Context, key string) (string, error)

	// PutBotKey stores the bot credential for an identity.
	PutBotKey(ctx context.Context, identity, key string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	BanStore
	NickStore
	BotKeyStore

	// Close releases the underlying storage.
	Close() error
}
