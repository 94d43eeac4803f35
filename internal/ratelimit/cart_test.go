package ratelimit

import (
	"context"
	"testing"

	"github.com/smallbiznis/tradeway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCartLimiterBlocksAfterRate(t *testing.T) {
	l, err := NewMemoryCartLimiter("2-M")
	require.NoError(t, err)
	ctx := context.Background()

	first, err := l.Allow(ctx, "1", "10")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.EqualValues(t, 2, first.Limit)
	assert.EqualValues(t, 1, first.Remaining)

	second, err := l.Allow(ctx, "1", "10")
	require.NoError(t, err)
	assert.True(t, second.Allowed)

	third, err := l.Allow(ctx, "1", "10")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.EqualValues(t, 0, third.Remaining)
}

func TestCartLimiterKeysByClient(t *testing.T) {
	l, err := NewMemoryCartLimiter("1-M")
	require.NoError(t, err)
	ctx := context.Background()

	d, err := l.Allow(ctx, "1", "10")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "1", "11")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "2", "10")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCartLimiterRequiresKey(t *testing.T) {
	l, err := NewMemoryCartLimiter("1-M")
	require.NoError(t, err)

	_, err = l.Allow(context.Background(), "1", " ")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewCartLimiterFallsBackToMemory(t *testing.T) {
	l, err := NewCartLimiter(config.Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, l.Shared())

	_, err = NewCartLimiter(config.Config{CartRateLimit: "lots"}, nil, zap.NewNop())
	assert.Error(t, err)
}
