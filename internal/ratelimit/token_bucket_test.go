package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScriptResult(t *testing.T) {
	cases := []struct {
		name       string
		res        []any
		allowed    bool
		remaining  int
		retryAfter time.Duration
	}{
		{name: "allowed", res: []any{int64(1), "4", int64(1715328000000)}, allowed: true, remaining: 4},
		{name: "empty bucket", res: []any{int64(0), "0", int64(1715328000000)}, retryAfter: 500 * time.Millisecond},
		{name: "partly refilled", res: []any{int64(0), "0.5", int64(1715328000000)}, retryAfter: 250 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseScriptResult(tc.res, 2, 5)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, got.Allowed)
			assert.Equal(t, tc.remaining, got.Remaining)
			assert.Equal(t, 5, got.Limit)
			assert.Equal(t, tc.retryAfter, got.RetryAfter)
		})
	}

	_, err := parseScriptResult([]any{int64(1)}, 2, 5)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(2, 20))
	assert.Equal(t, time.Second, bucketTTL(1000, 1))
}

func TestNilLimiterAllows(t *testing.T) {
	var limiter *WriteLimiter
	res, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucketValidatesInput(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
