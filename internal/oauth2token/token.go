// Package oauth2token manages the client-credentials OAuth2 token used by
// the Registry API adapter: a cache-until-expiry wrapper around
// golang.org/x/oauth2/clientcredentials, with single-flighted refresh and
// explicit invalidate-on-401 support that the stock library doesn't offer.
package oauth2token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// expiryMargin is subtracted from a token's reported expiry; callers get a
// fresh token slightly before the upstream would consider it expired.
const expiryMargin = 300 * time.Second

// acquireTimeout bounds a single token acquisition. Acquisition is
// deliberately NOT routed through the circuit breaker: a failure to mint a
// token simply yields an error the caller treats as a provider-wide
// outage for that call.
const acquireTimeout = 30 * time.Second

// Manager caches a single client-credentials token and serializes
// concurrent refreshes.
type Manager struct {
	cfg clientcredentials.Config

	mu    sync.Mutex
	cache *oauth2.Token

	group singleflight.Group
}

// New builds a Manager for the given token endpoint and client credentials.
func New(tokenURL, clientID, clientSecret, scope string) *Manager {
	return &Manager{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{scope},
		},
	}
}

// Token returns a cached token if it has more than expiryMargin left on
// its clock, otherwise performs a single-flighted refresh.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	cached := m.cache
	m.mu.Unlock()

	if cached != nil && time.Until(cached.Expiry) > expiryMargin {
		return cached.AccessToken, nil
	}

	tok, err, _ := m.group.Do("refresh", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return tok.(*oauth2.Token).AccessToken, nil
}

// Invalidate drops the cached token. The Registry adapter calls this after
// an upstream 401 so the next Token call performs a fresh exchange.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cache = nil
	m.mu.Unlock()
}

func (m *Manager) refresh(ctx context.Context) (*oauth2.Token, error) {
	// Re-check under the singleflight key: another caller may have just
	// refreshed while this one was waiting to be the leader.
	m.mu.Lock()
	if m.cache != nil && time.Until(m.cache.Expiry) > expiryMargin {
		tok := m.cache
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	tok, err := m.cfg.Token(cctx)
	if err != nil {
		return nil, fmt.Errorf("oauth2token: acquire token: %w", err)
	}

	m.mu.Lock()
	m.cache = tok
	m.mu.Unlock()
	return tok, nil
}
