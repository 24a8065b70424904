package ratelimit

import (
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisRateLimiter(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	tests := []struct {
		name   string
		cfg    Config
		limit  redis_rate.Limit
		prefix string
	}{
		{"configured", Config{QPS: 5, Burst: 10, Prefix: "bonus"}, redis_rate.Limit{Rate: 5, Period: time.Second, Burst: 10}, "bonus"},
		{"burst raised to qps", Config{QPS: 5, Burst: 1}, redis_rate.Limit{Rate: 5, Period: time.Second, Burst: 5}, defaultPrefix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewRedisRateLimiter(rdb, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.limit, l.limit)
			assert.Equal(t, tt.prefix, l.prefix)
		})
	}

	_, err := NewRedisRateLimiter(rdb, Config{QPS: 0, Burst: 3})
	assert.Error(t, err)
}
