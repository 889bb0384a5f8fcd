package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// RenderCache stores rendered markup keyed by a digest of the persisted
// content and its declared format.
type RenderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRenderCache(client *redis.Client, ttl time.Duration) *RenderCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RenderCache{client: client, ttl: ttl}
}

// RenderKey returns the cache key for raw content in format.
func RenderKey(format, raw string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write([]byte(raw))
	return keyPrefix + "render:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns cached markup. A miss is ("", false, nil).
func (c *RenderCache) Get(ctx context.Context, format, raw string) (string, bool, error) {
	html, err := c.client.Get(ctx, RenderKey(format, raw)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read render cache: %w", err)
	}
	return html, true, nil
}

func (c *RenderCache) Put(ctx context.Context, format, raw, html string) error {
	if err := c.client.Set(ctx, RenderKey(format, raw), html, c.ttl).Err(); err != nil {
		return fmt.Errorf("write render cache: %w", err)
	}
	return nil
}
