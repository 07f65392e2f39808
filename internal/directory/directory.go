// Package directory verifies credentials against the user directory, either
// by talking LDAP directly or through an HTTP proxy exposing the same
// operations.
package directory

import (
	"context"
	"errors"
)

// ErrInvalidCredentials is returned when the directory rejects the credential pair.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Result is a successful authentication: the canonical identity plus an
// opaque handle (the entry DN for LDAP) used for profile lookups.
type Result struct {
	Identity string
	Handle   string
}

// Authenticator verifies a credential pair and resolves user profiles.
type Authenticator interface {
	// Authenticate verifies identity/secret. It returns ErrInvalidCredentials
	// on a clean rejection and other errors for directory failures.
	Authenticate(ctx context.Context, identity, secret string) (*Result, error)

	// FetchProfile returns the directory-provided given name for a previously
	// authenticated result. An empty name with nil error is valid.
	FetchProfile(ctx context.Context, res *Result) (string, error)
}
