// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"sync"
	"time"
)

// refreshMargin is how long before the server-reported expiry the cache
// treats a token as stale, per spec section 4.B ("expiry approximately 5
// minutes before the server-provided lifetime").
const refreshMargin = 5 * time.Minute

// TokenFetcher retrieves a fresh access token and its server-reported
// lifetime. Implementations talk to one provider's token endpoint.
type TokenFetcher func(ctx context.Context) (token string, lifetime time.Duration, err error)

// TokenCache is per-instance state shared by none of the reconciler's
// goroutines across runs: each provider client owns exactly one cache, and
// provider clients are never shared across runs (spec section 5). The
// mutex only guards against the rare case of concurrent GetDepartments and
// GetUsers calls within the same run.
type TokenCache struct {
	mu      sync.Mutex
	fetch   TokenFetcher
	token   string
	expires time.Time
}

// NewTokenCache wraps fetch in a cache that refreshes lazily on demand.
func NewTokenCache(fetch TokenFetcher) *TokenCache {
	return &TokenCache{fetch: fetch}
}

// Get returns a valid token, fetching a new one if the cached token is
// missing or within refreshMargin of expiry.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	token, lifetime, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expires = time.Now().Add(lifetime - refreshMargin)
	return c.token, nil
}

// Invalidate forces the next Get to refetch, used when a call fails with an
// auth error that suggests the cached token was revoked server-side.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expires = time.Time{}
}
