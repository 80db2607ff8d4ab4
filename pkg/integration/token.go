package integration

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenRefreshMargin is how long before expiry a cached token is replaced.
// Tokens living less than twice the margin are replaced halfway through
// their lifetime instead.
const TokenRefreshMargin = 5 * time.Minute

// tokenFetchTimeout bounds a shared refresh, which outlives any single
// caller's context.
const tokenFetchTimeout = 30 * time.Second

// Token is a bearer credential and its lifetime.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// TokenFetcher acquires a fresh token from the vendor.
type TokenFetcher func(ctx context.Context) (Token, error)

// TokenCache holds one adapter instance's bearer token. It is safe for
// concurrent use; simultaneous refreshes collapse into one vendor call.
type TokenCache struct {
	fetch TokenFetcher
	now   func() time.Time

	mu        sync.Mutex
	token     string
	refreshAt time.Time

	group singleflight.Group
}

// NewTokenCache creates a token cache backed by fetch.
func NewTokenCache(fetch TokenFetcher) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

// Token returns the cached token, refreshing it when it is missing or
// within its refresh margin. A caller whose ctx ends stops waiting; the
// shared refresh carries on for the others.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenFetchTimeout)
		defer cancel()
		t, err := c.fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = t.AccessToken
		c.refreshAt = c.now().Add(t.ExpiresIn - refreshMargin(t.ExpiresIn))
		c.mu.Unlock()
		return t.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token, e.g. after the vendor answered 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.refreshAt = time.Time{}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.refreshAt) {
		return "", false
	}
	return c.token, true
}

func refreshMargin(lifetime time.Duration) time.Duration {
	if lifetime < 2*TokenRefreshMargin {
		return lifetime / 2
	}
	return TokenRefreshMargin
}

// BearerAuthorizer sets the Authorization header from tokens.
func BearerAuthorizer(tokens *TokenCache) Authorizer {
	return func(ctx context.Context, req *http.Request) error {
		tok, err := tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		return nil
	}
}
