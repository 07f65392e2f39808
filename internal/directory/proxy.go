package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ProxyClient speaks to an HTTP relay in front of the directory. Operations
// are form-encoded POSTs; the body is "true"/"false" for authenticate, the
// given name for getUser, or an "err"-prefixed string on failure.
type ProxyClient struct {
	url    string
	client *http.Client
}

// NewProxyClient builds an authenticator that calls the given proxy URL.
func NewProxyClient(proxyURL string) *ProxyClient {
	return &ProxyClient{
		url:    proxyURL,
		client: &http.Client{},
	}
}

// Authenticate posts the credential pair to the proxy.
func (c *ProxyClient) Authenticate(ctx context.Context, identity, secret string) (*Result, error) {
	body, err := c.post(ctx, url.Values{
		"authenticate": {identity},
		"password":     {secret},
	})
	if err != nil {
		return nil, err
	}

	switch {
	case body == "true":
		return &Result{Identity: identity, Handle: identity}, nil
	case body == "false":
		return nil, ErrInvalidCredentials
	case strings.HasPrefix(body, "err"):
		return nil, fmt.Errorf("proxy error: %s", body)
	default:
		return nil, fmt.Errorf("unexpected proxy response %q", body)
	}
}

// FetchProfile asks the proxy for the user's given name.
func (c *ProxyClient) FetchProfile(ctx context.Context, res *Result) (string, error) {
	body, err := c.post(ctx, url.Values{
		"getUser": {res.Identity},
	})
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(body, "err") {
		return "", fmt.Errorf("proxy error: %s", body)
	}
	return body, nil
}

func (c *ProxyClient) post(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call proxy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("proxy status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read proxy response: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
