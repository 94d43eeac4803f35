package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tradeway/internal/config"
)

// PriceKey is the full input tuple of a price resolution.
type PriceKey struct {
	OrgID       snowflake.ID
	ItemID      snowflake.ID
	VariationID snowflake.ID
	Country     string
	LevelID     snowflake.ID
}

func (k PriceKey) String() string {
	return cacheKey(
		k.OrgID.String(),
		k.ItemID.String(),
		strconv.FormatInt(int64(k.VariationID), 10),
		k.Country,
		strconv.FormatInt(int64(k.LevelID), 10),
	)
}

// PriceEntry is a resolved unit price.
type PriceEntry struct {
	UnitPrice decimal.Decimal
	Points    int64
	IsPoints  bool
}

// PriceCache holds resolved prices for a bounded time. Entries are never invalidated early;
// callers accept up to one TTL of staleness.
type PriceCache interface {
	Get(key PriceKey) (PriceEntry, bool)
	Set(key PriceKey, value PriceEntry)
}

type priceCache struct {
	items Cache[string, PriceEntry]
	ttl   func() time.Duration
}

// NewPriceCache reads the TTL from the hot-reloaded commerce config on every write.
func NewPriceCache(holder *config.CommerceConfigHolder) PriceCache {
	return &priceCache{
		items: NewTTLCache[string, PriceEntry](),
		ttl: func() time.Duration {
			return holder.Get().Pricing.CacheTTL
		},
	}
}

// NewPriceCacheWithTTL builds a cache with a fixed TTL and time source.
func NewPriceCacheWithTTL(ttl time.Duration, opts ...Option) PriceCache {
	return &priceCache{
		items: NewTTLCache[string, PriceEntry](opts...),
		ttl:   func() time.Duration { return ttl },
	}
}

func (c *priceCache) Get(key PriceKey) (PriceEntry, bool) {
	return c.items.Get(key.String())
}

func (c *priceCache) Set(key PriceKey, value PriceEntry) {
	c.items.Set(key.String(), value, c.ttl())
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
