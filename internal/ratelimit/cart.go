package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tradeway/internal/config"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	defaultCartRate = "120-M"
	cartKeyPrefix   = "tradeway:ratelimit:cart"
)

var ErrInvalidKey = errors.New("rate_limit_key_required")

// Decision is the outcome of a single limiter check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// CartLimiter throttles cart mutations per organization and client.
type CartLimiter struct {
	limiter *limiter.Limiter
	shared  bool
}

// NewCartLimiter uses the redis store when a client is configured so limits
// hold across replicas.
func NewCartLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*CartLimiter, error) {
	rate, err := parseRate(cfg.CartRateLimit)
	if err != nil {
		return nil, err
	}

	if client == nil {
		store := memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          cartKeyPrefix,
			CleanUpInterval: time.Minute,
		})
		log.Info("cart rate limit is process local", zap.String("rate", formatRate(rate)))
		return &CartLimiter{limiter: limiter.New(store, rate)}, nil
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   cartKeyPrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, err
	}
	return &CartLimiter{limiter: limiter.New(store, rate), shared: true}, nil
}

// NewMemoryCartLimiter builds a process-local limiter from a formatted rate such as "5-S".
func NewMemoryCartLimiter(formatted string) (*CartLimiter, error) {
	rate, err := parseRate(formatted)
	if err != nil {
		return nil, err
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: cartKeyPrefix})
	return &CartLimiter{limiter: limiter.New(store, rate)}, nil
}

// Shared reports whether counters are kept in redis.
func (l *CartLimiter) Shared() bool {
	return l != nil && l.shared
}

// Allow consumes one request for the org and client pair.
func (l *CartLimiter) Allow(ctx context.Context, orgID, clientID string) (Decision, error) {
	orgID = strings.TrimSpace(orgID)
	clientID = strings.TrimSpace(clientID)
	if orgID == "" || clientID == "" {
		return Decision{}, ErrInvalidKey
	}
	if l == nil || l.limiter == nil {
		return Decision{Allowed: true}, nil
	}

	res, err := l.limiter.Get(ctx, orgID+":"+clientID)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   time.Unix(res.Reset, 0).UTC(),
	}, nil
}

func parseRate(formatted string) (limiter.Rate, error) {
	formatted = strings.TrimSpace(formatted)
	if formatted == "" {
		formatted = defaultCartRate
	}
	return limiter.NewRateFromFormatted(formatted)
}

func formatRate(rate limiter.Rate) string {
	return strings.TrimSpace(rate.Formatted)
}
