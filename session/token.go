// Package session implements the Remote Session Manager from spec.md §4.7:
// an OAuth2 client-credentials token provider feeding a reconnecting
// WebSocket client that speaks a small JSON frame protocol back to a
// controlling server. The OAuth2 half is grounded on
// golang.org/x/oauth2/clientcredentials, the ecosystem-standard client
// credentials grant implementation (named, not teacher-grounded: dex is an
// OIDC *provider*, not a relying party, so nothing in dexidp-dex exercises
// this client-side flow; the dependency itself is named in spec.md §4.7).
package session

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/srallapally/openicf-connector-service/connerr"
)

// TokenProviderConfig configures the OAuth2 client-credentials grant used to
// authenticate the WebSocket connection.
type TokenProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string

	// Audience and Resource are the optional OAUTH_AUDIENCE/OAUTH_RESOURCE
	// extras from spec.md §6, forwarded as token-request parameters for
	// authorization servers that require them (e.g. RFC 8707 resource
	// indicators, or Auth0/Okta-style audience-scoped access tokens).
	Audience string
	Resource string

	// EarlyExpiry is how long before the token's real expiry it is treated
	// as stale, so a refresh has time to complete before the server would
	// reject the old token. Defaults to 30s per spec.md §4.7.
	EarlyExpiry time.Duration
}

// endpointParams builds the extra token-request form values clientcredentials
// sends alongside client_id/client_secret, since clientcredentials.Config has
// no dedicated Audience/Resource fields of its own.
func endpointParams(audience, resource string) url.Values {
	if audience == "" && resource == "" {
		return nil
	}
	v := url.Values{}
	if audience != "" {
		v.Set("audience", audience)
	}
	if resource != "" {
		v.Set("resource", resource)
	}
	return v
}

// TokenProvider wraps a clientcredentials.Config with single-flight refresh
// and explicit invalidation, since oauth2.TokenSource alone has no way for a
// caller to say "that token was rejected, get a new one" (spec.md §4.7's
// "invalidate the cached token on 401/403").
type TokenProvider struct {
	cfg    clientcredentials.Config
	early  time.Duration

	mu      sync.Mutex
	cached  *oauth2.Token
	inflight chan struct{} // non-nil while a refresh is in progress
}

// NewTokenProvider builds a TokenProvider from cfg.
func NewTokenProvider(cfg TokenProviderConfig) *TokenProvider {
	early := cfg.EarlyExpiry
	if early <= 0 {
		early = 30 * time.Second
	}
	return &TokenProvider{
		cfg: clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       cfg.TokenURL,
			Scopes:         cfg.Scopes,
			EndpointParams: endpointParams(cfg.Audience, cfg.Resource),
		},
		early: early,
	}
}

// Token returns a live access token, refreshing via the client-credentials
// grant if the cached one is absent or within EarlyExpiry of expiring.
// Concurrent callers during a refresh share the single in-flight request
// rather than each issuing their own token request.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.cached != nil && time.Until(p.cached.Expiry) > p.early {
		tok := p.cached.AccessToken
		p.mu.Unlock()
		return tok, nil
	}
	if p.inflight != nil {
		ch := p.inflight
		p.mu.Unlock()
		<-ch
		return p.Token(ctx)
	}
	ch := make(chan struct{})
	p.inflight = ch
	p.mu.Unlock()

	tok, err := p.cfg.Token(ctx)

	p.mu.Lock()
	if err == nil {
		p.cached = tok
	}
	p.inflight = nil
	p.mu.Unlock()
	close(ch)

	if err != nil {
		return "", connerr.Wrap(connerr.KindTokenRequestFailed, "client-credentials token request failed", err)
	}
	return tok.AccessToken, nil
}

// Invalidate discards the cached token, forcing the next Token call to
// request a fresh one. Called after the server rejects a token with 401/403
// (spec.md §4.7).
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
}
