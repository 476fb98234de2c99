package padm

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// ClientOptions configures a Client for one PADM target.
type ClientOptions struct {
	// Name identifies the target in logs and metric labels.
	Name string

	// BaseURL is scheme://host[:port] without a trailing slash.
	BaseURL string

	// TLSInsecure disables certificate verification. Only for targets with
	// self-signed device certificates.
	TLSInsecure bool

	Username string
	Password string

	// TokenTTL is the fallback token lifetime when the access token carries
	// no exp claim; TokenMargin is the refresh safety margin.
	TokenTTL    time.Duration
	TokenMargin time.Duration

	// Definitions is the tracked variable set from Resolve.
	Definitions map[string]Definition
}

// Client performs authenticated variable retrieval against one PADM target.
// It builds its HTTP client once and reuses it across fetches.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	tokens  *TokenManager
	defs    map[string]Definition
}

// NewClient constructs a Client and its TokenManager.
func NewClient(opts ClientOptions) *Client {
	hc := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: opts.TLSInsecure, //nolint:gosec // user-configured
			},
		},
		Timeout: defaultRequestTimeout,
	}
	return &Client{
		name:    opts.Name,
		baseURL: opts.BaseURL,
		http:    hc,
		tokens: NewTokenManager(hc, opts.BaseURL,
			opts.Username, opts.Password, opts.TokenTTL, opts.TokenMargin),
		defs: opts.Definitions,
	}
}

// Name returns the target identifier.
func (c *Client) Name() string { return c.name }

// Tokens exposes the token manager so the poller can force a refresh.
func (c *Client) Tokens() *TokenManager { return c.tokens }

// Fetch retrieves the current readings for every tracked variable.
//
// Error taxonomy: *AuthError when the token exchange itself fails,
// *AuthRejectedError when the API refuses the bearer token, *TransportError
// on network failure or unexpected status, *ParseError on a malformed body.
func (c *Client) Fetch(ctx context.Context) ([]Reading, error) {
	tok, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/variables", nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthRejectedError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return decodeReadings(resp.Body, c.defs)
}
