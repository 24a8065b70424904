package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/cache"
)

func newTestCache(t *testing.T) (*AccountCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAccountCache(cache.NewFromClient(client), time.Minute), mr
}

func TestAccountCache_RoundTripKeepsSecretAndDecimals(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 0, 0, 123456000, time.UTC)

	miss, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, miss)

	a := domain.NewAccount("alice", "$2a$04$hash", "0711", "ABCD1234", "", now)
	a.Balance = decimal.RequireFromString("1322.209")
	a.ReferralEarned = decimal.NewFromInt(200)
	a.Approved = true
	require.NoError(t, c.Set(ctx, a))
	assert.True(t, mr.Exists("bonus:account:alice"))
	assert.Equal(t, time.Minute, mr.TTL("bonus:account:alice"))

	got, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "$2a$04$hash", got.PasswordSecret)
	assert.True(t, a.Balance.Equal(got.Balance))
	assert.True(t, got.CreatedAt.Equal(now))
	assert.True(t, got.Approved)

	require.NoError(t, c.Delete(ctx, "alice"))
	assert.False(t, mr.Exists("bonus:account:alice"))
}

func TestAccountCache_ExpiresAfterTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, domain.NewAccount("bob", "x", "", "CODE0001", "", time.Now().UTC())))
	mr.FastForward(2 * time.Minute)

	got, err := c.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, got)
}
