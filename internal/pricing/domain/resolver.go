package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ResolveRequest identifies one sellable item. ItemID names a product or an
// affiliate product; VariationID is required for variable products.
type ResolveRequest struct {
	OrgID       snowflake.ID
	ItemID      snowflake.ID
	VariationID snowflake.ID
	Country     string
	LevelID     snowflake.ID
}

// Price is either a money unit price or a points price, never both.
type Price struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
	Points    int64           `json:"points"`
	IsPoints  bool            `json:"is_points"`
}

// Resolver computes the base unit price of an item. db may be a transaction.
type Resolver interface {
	Resolve(ctx context.Context, db *gorm.DB, req ResolveRequest) (Price, error)
}

// QuoteLine is one cart line to be priced. Exactly one of ProductID or
// AffiliateProductID is set.
type QuoteLine struct {
	Key                snowflake.ID
	ProductID          snowflake.ID
	VariationID        snowflake.ID
	AffiliateProductID snowflake.ID
	Quantity           int64
}

type QuoteRequest struct {
	OrgID    snowflake.ID
	ClientID snowflake.ID
	LevelID  snowflake.ID
	Country  string
	Lines    []QuoteLine
}

// QuotedLine carries the final unit price of a line after tier pricing.
type QuotedLine struct {
	Key    snowflake.ID
	Price  Price
	RuleID snowflake.ID
}

// Quoter prices a whole cart, applying quantity tiers across lines.
type Quoter interface {
	Quote(ctx context.Context, db *gorm.DB, req QuoteRequest) ([]QuotedLine, error)
}

var (
	ErrInvalidInput     = errors.New("invalid_input")
	ErrVariationMissing = errors.New("variation_required")
	ErrNotFound         = errors.New("price_not_found")
	ErrLevelTooLow      = errors.New("level_too_low")
)
