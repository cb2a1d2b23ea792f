package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"todocal/internal/cache"
)

func TestTokenStore_FailsOpenWithoutRedis(t *testing.T) {
	store := NewTokenStore(cache.New("127.0.0.1:1", "", 0))
	ctx := context.Background()

	assert.NoError(t, store.Revoke(ctx, "jti", time.Hour))
	revoked, err := store.IsRevoked(ctx, "jti")
	assert.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenStore_IgnoresEmptyIDs(t *testing.T) {
	store := NewTokenStore(nil)
	ctx := context.Background()

	assert.NoError(t, store.Revoke(ctx, "", time.Hour))
	assert.NoError(t, store.Revoke(ctx, "jti", 0))
	revoked, err := store.IsRevoked(ctx, "")
	assert.NoError(t, err)
	assert.False(t, revoked)
}
