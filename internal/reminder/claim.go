package reminder

import (
	"context"
	"strconv"
	"time"

	"todocal/internal/cache"
)

const claimKeyPrefix = "reminder:claim:"

// Claimer hands out short-lived exclusive rights to send one todo's reminder,
// so instances sharing a database do not both send it.
type Claimer interface {
	Claim(ctx context.Context, todoID uint) bool
	Release(ctx context.Context, todoID uint)
}

// CacheClaimer implements Claimer with SETNX in Redis.
// Without Redis every claim succeeds and the notified flag alone prevents repeats.
type CacheClaimer struct {
	cache *cache.Client
	ttl   time.Duration
}

// NewCacheClaimer creates a claimer whose claims expire after ttl.
func NewCacheClaimer(c *cache.Client, ttl time.Duration) *CacheClaimer {
	return &CacheClaimer{cache: c, ttl: ttl}
}

// Claim implements Claimer.
func (c *CacheClaimer) Claim(ctx context.Context, todoID uint) bool {
	return c.cache.SetNX(ctx, claimKey(todoID), []byte("1"), c.ttl)
}

// Release implements Claimer.
func (c *CacheClaimer) Release(ctx context.Context, todoID uint) {
	_ = c.cache.Delete(ctx, claimKey(todoID))
}

func claimKey(todoID uint) string {
	return claimKeyPrefix + strconv.FormatUint(uint64(todoID), 10)
}
