package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/avolkov/relaychat-server/internal/config"
)

// LDAPClient authenticates against an LDAP directory with a search-then-bind
// flow. A fresh connection is opened per operation; login volume is low.
type LDAPClient struct {
	url    string
	baseDN string
}

// NewLDAPClient builds a direct LDAP authenticator from directory config.
func NewLDAPClient(cfg config.DirectoryConfig) *LDAPClient {
	scheme := "ldap"
	if cfg.SSL {
		scheme = "ldaps"
	}
	return &LDAPClient{
		url:    fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
		baseDN: cfg.BaseDN,
	}
}

// Authenticate looks up the entry for identity and binds with its DN and secret.
func (c *LDAPClient) Authenticate(ctx context.Context, identity, secret string) (*Result, error) {
	// Anonymous binds would "succeed" with an empty password.
	if secret == "" {
		return nil, ErrInvalidCredentials
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	entry, err := c.findEntry(conn, identity, nil)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrInvalidCredentials
	}

	if err := conn.Bind(entry.DN, secret); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("bind: %w", err)
	}

	return &Result{
		Identity: entry.GetAttributeValue("uid"),
		Handle:   entry.DN,
	}, nil
}

// FetchProfile reads the given name from the authenticated entry.
func (c *LDAPClient) FetchProfile(ctx context.Context, res *Result) (string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	entry, err := c.findEntry(conn, res.Identity, []string{"givenName"})
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", nil
	}
	return entry.GetAttributeValue("givenName"), nil
}

func (c *LDAPClient) dial(ctx context.Context) (*ldap.Conn, error) {
	conn, err := ldap.DialURL(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial directory: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}
	return conn, nil
}

func (c *LDAPClient) findEntry(conn *ldap.Conn, identity string, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		c.baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(identity)),
		append([]string{"uid"}, attrs...),
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, fmt.Errorf("search directory: %w", err)
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	return res.Entries[0], nil
}
