package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ProductKind string

const (
	ProductKindSimple   ProductKind = "simple"
	ProductKindVariable ProductKind = "variable"
)

// DefaultLevelKey selects the points bracket used when no level-specific price exists.
const DefaultLevelKey = "default"

// PriceEntry is a per-country money price. A zero or missing sale price means "not on sale".
type PriceEntry struct {
	Regular decimal.Decimal  `json:"regular"`
	Sale    *decimal.Decimal `json:"sale,omitempty"`
}

// PriceTable maps an upper-case country code to its price entry.
type PriceTable map[string]PriceEntry

// CostTable maps an upper-case country code to the unit cost.
type CostTable map[string]decimal.Decimal

// PointsEntry is a per-country points price.
type PointsEntry struct {
	Regular int64  `json:"regular"`
	Sale    *int64 `json:"sale,omitempty"`
}

// PointsTable maps a level key (level id or DefaultLevelKey) to country prices.
type PointsTable map[string]map[string]PointsEntry

type Product struct {
	ID              snowflake.ID                   `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID                   `gorm:"not null;index" json:"organization_id"`
	Name            string                         `gorm:"type:text;not null" json:"name"`
	Kind            ProductKind                    `gorm:"type:text;not null;default:'simple'" json:"kind"`
	Prices          datatypes.JSONType[PriceTable] `gorm:"type:jsonb" json:"prices"`
	Costs           datatypes.JSONType[CostTable]  `gorm:"type:jsonb" json:"costs"`
	ManageStock     bool                           `gorm:"not null;default:false" json:"manage_stock"`
	AllowBackorders bool                           `gorm:"not null;default:false" json:"allow_backorders"`
	CreatedAt       time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

type Variation struct {
	ID        snowflake.ID                   `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID                   `gorm:"not null;index" json:"organization_id"`
	ProductID snowflake.ID                   `gorm:"not null;index" json:"product_id"`
	Name      string                         `gorm:"type:text;not null" json:"name"`
	Prices    datatypes.JSONType[PriceTable] `gorm:"type:jsonb" json:"prices"`
	Costs     datatypes.JSONType[CostTable]  `gorm:"type:jsonb" json:"costs"`
	CreatedAt time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Variation) TableName() string { return "product_variations" }

type AffiliateProduct struct {
	ID          snowflake.ID                    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID                    `gorm:"not null;index" json:"organization_id"`
	Name        string                          `gorm:"type:text;not null" json:"name"`
	Points      datatypes.JSONType[PointsTable] `gorm:"type:jsonb" json:"points"`
	MinLevelID  *snowflake.ID                   `json:"min_level_id,omitempty"`
	ManageStock bool                            `gorm:"not null;default:false" json:"manage_stock"`
	CreatedAt   time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AffiliateProduct) TableName() string { return "affiliate_products" }

// AffiliateLevel is a loyalty rank ordered by RequiredPoints.
type AffiliateLevel struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	RequiredPoints int64        `gorm:"not null;default:0" json:"required_points"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AffiliateLevel) TableName() string { return "affiliate_levels" }

// SharedProductMapping says TargetProductID is fulfilled by SourceProductID of SourceOrgID.
// Either id may name a variation.
type SharedProductMapping struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	TargetOrgID     snowflake.ID `gorm:"not null;index" json:"target_organization_id"`
	TargetProductID snowflake.ID `gorm:"not null;index" json:"target_product_id"`
	SourceOrgID     snowflake.ID `gorm:"not null;index" json:"source_organization_id"`
	SourceProductID snowflake.ID `gorm:"not null" json:"source_product_id"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SharedProductMapping) TableName() string { return "shared_product_mappings" }

// Price picks the sale price when it is set and non-zero, else the regular price.
func (t PriceTable) Price(country string) (decimal.Decimal, bool) {
	entry, ok := t[country]
	if !ok {
		return decimal.Zero, false
	}
	if entry.Sale != nil && !entry.Sale.IsZero() {
		return *entry.Sale, true
	}
	return entry.Regular, true
}

// Regular returns the regular price only.
func (t PriceTable) Regular(country string) (decimal.Decimal, bool) {
	entry, ok := t[country]
	if !ok {
		return decimal.Zero, false
	}
	return entry.Regular, true
}

// Price picks the sale points when set and non-zero, else the regular points.
func (t PointsTable) Price(levelKey, country string) (int64, bool) {
	byCountry, ok := t[levelKey]
	if !ok {
		return 0, false
	}
	entry, ok := byCountry[country]
	if !ok {
		return 0, false
	}
	if entry.Sale != nil && *entry.Sale != 0 {
		return *entry.Sale, true
	}
	return entry.Regular, true
}
