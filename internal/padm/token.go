package padm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is a bearer credential issued by the PADM OAuth endpoint.
type Token struct {
	AccessToken string

	// RefreshToken is returned by the API but unused: PADM does not offer a
	// refresh-token grant, so renewal is always a full re-authentication.
	RefreshToken string

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the token is still more than margin from expiry.
func (t Token) Fresh(now time.Time, margin time.Duration) bool {
	return t.AccessToken != "" && now.Add(margin).Before(t.ExpiresAt)
}

// TokenManager owns the OAuth2 password-grant lifecycle for one target.
//
// Get is safe for concurrent use: the mutex is held across a refresh, so
// callers arriving mid-refresh wait for its result instead of issuing
// duplicate exchanges.
type TokenManager struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	ttl      time.Duration // fallback lifetime when the token carries no exp claim
	margin   time.Duration
	now      func() time.Time // injectable for deterministic tests

	mu  sync.Mutex
	cur Token
}

// NewTokenManager returns a manager that authenticates lazily on first Get.
func NewTokenManager(client *http.Client, baseURL, username, password string, ttl, margin time.Duration) *TokenManager {
	return &TokenManager{
		client:   client,
		baseURL:  baseURL,
		username: username,
		password: password,
		ttl:      ttl,
		margin:   margin,
		now:      time.Now,
	}
}

// Get returns a token valid for at least the safety margin, re-authenticating
// synchronously when the cached token is missing or near expiry.
//
// A refresh that fails while the previous token has not yet truly expired
// returns the previous token for one more use; once expired, the *AuthError
// propagates to every waiting caller.
func (m *TokenManager) Get(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.cur.Fresh(now, m.margin) {
		return m.cur, nil
	}

	tok, err := m.exchange(ctx)
	if err != nil {
		if m.cur.AccessToken != "" && now.Before(m.cur.ExpiresAt) {
			slog.Warn("padm: token refresh failed, reusing unexpired token",
				"host", m.baseURL, "err", err)
			return m.cur, nil
		}
		return Token{}, err
	}

	m.cur = tok
	slog.Debug("padm: authenticated", "host", m.baseURL, "expires_at", tok.ExpiresAt)
	return tok, nil
}

// Invalidate drops the cached token so the next Get re-authenticates.
// Called by the poller after the API rejects a bearer token.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = Token{}
}

// exchange performs the password-grant POST. Callers hold m.mu.
func (m *TokenManager) exchange(ctx context.Context) (Token, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {m.username},
		"password":   {m.password},
	}

	// grant_type also travels as a query parameter; some PADM firmware
	// revisions read it from the URL rather than the form body.
	endpoint := m.baseURL + "/api/oauth/token?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &AuthError{Host: m.baseURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return Token{}, &AuthError{Host: m.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, &AuthError{Host: m.baseURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		Msg          string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, &AuthError{Host: m.baseURL, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if body.AccessToken == "" {
		return Token{}, &AuthError{Host: m.baseURL, Err: errors.New("token response missing access_token")}
	}

	now := m.now()
	tok := Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		IssuedAt:     now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if exp, ok := tokenExpiry(body.AccessToken); ok {
		tok.ExpiresAt = exp
	}
	return tok, nil
}

// tokenExpiry extracts the exp claim when the access token is a JWT.
// The signature is deliberately not verified: the exporter is a client of
// the API, not a validator of its tokens. Opaque tokens fall back to the
// configured TTL.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
