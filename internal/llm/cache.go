package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// CachedClient memoizes completions so repeated analyses of the same logs
// do not pay for the same summary twice. Keys cover everything that can
// change the answer; entries expire with the configured TTL.
type CachedClient struct {
	inner Client
	cache *bigcache.BigCache
}

// NewCachedClient wraps a client in a response cache.
func NewCachedClient(inner Client, ttl time.Duration) (*CachedClient, error) {
	cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, wrapProviderError(ErrTypeInternal, inner.Name(), "failed to create response cache", err)
	}
	return &CachedClient{inner: inner, cache: cache}, nil
}

// Name returns the wrapped backend's name.
func (c *CachedClient) Name() string { return c.inner.Name() }

// Complete serves identical requests from memory, falling through to the
// backend on miss. Cache failures are invisible: a broken cache degrades
// to pass-through.
func (c *CachedClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	key := cacheKey(c.inner.Name(), req)

	if data, err := c.cache.Get(key); err == nil {
		var resp Response
		if json.Unmarshal(data, &resp) == nil {
			return &resp, nil
		}
	}

	resp, err := c.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		_ = c.cache.Set(key, data)
	}
	return resp, nil
}

// Close releases the cache and the wrapped client.
func (c *CachedClient) Close() error {
	_ = c.cache.Close()
	return c.inner.Close()
}

func cacheKey(provider string, req *Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%.3f",
		provider, req.Model, req.SystemPrompt, req.Prompt, req.MaxTokens, req.Temperature)
	return hex.EncodeToString(h.Sum(nil))
}
