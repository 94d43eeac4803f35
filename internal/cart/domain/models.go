package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type Cart struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index:ix_carts_owner"`
	ClientID    snowflake.ID `json:"client_id" gorm:"not null;index:ix_carts_owner"`
	Country     string       `json:"country" gorm:"type:text;not null"`
	Status      Status       `json:"status" gorm:"type:text;not null;default:'open'"`
	ContentHash string       `json:"content_hash" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Cart) TableName() string { return "carts" }

func (c *Cart) IsOpen() bool { return c != nil && c.Status == StatusOpen }

// Line is either a money line (ProductID, optional VariationID) or a points
// line (AffiliateProductID), never both. Zero means absent.
type Line struct {
	ID                 snowflake.ID    `json:"id" gorm:"primaryKey"`
	CartID             snowflake.ID    `json:"cart_id" gorm:"not null;index"`
	OrgID              snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null"`
	ProductID          snowflake.ID    `json:"product_id,omitempty" gorm:"not null;default:0"`
	VariationID        snowflake.ID    `json:"variation_id,omitempty" gorm:"not null;default:0"`
	AffiliateProductID snowflake.ID    `json:"affiliate_product_id,omitempty" gorm:"not null;default:0"`
	Quantity           int64           `json:"quantity" gorm:"not null"`
	UnitPrice          decimal.Decimal `json:"unit_price" gorm:"type:numeric(18,4);not null;default:0"`
	PointsPrice        int64           `json:"points_price" gorm:"not null;default:0"`
	CreatedAt          time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Line) TableName() string { return "cart_lines" }

func (l *Line) IsPoints() bool { return l.AffiliateProductID != 0 }

// StockItemID is the id stock is tracked under: the variation when set.
func (l *Line) StockItemID() snowflake.ID {
	if l.VariationID != 0 {
		return l.VariationID
	}
	return l.ProductID
}

// Subtotal is the money total of the line.
func (l *Line) Subtotal() decimal.Decimal {
	if l.IsPoints() {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// PointsTotal is the points total of the line.
func (l *Line) PointsTotal() int64 {
	if !l.IsPoints() {
		return 0
	}
	return l.PointsPrice * l.Quantity
}

func (l *Line) sameItem(productID, variationID, affiliateID snowflake.ID) bool {
	return l.ProductID == productID && l.VariationID == variationID && l.AffiliateProductID == affiliateID
}

// FindLine returns the line holding the given item.
func FindLine(lines []Line, productID, variationID, affiliateID snowflake.ID) *Line {
	for i := range lines {
		if lines[i].sameItem(productID, variationID, affiliateID) {
			return &lines[i]
		}
	}
	return nil
}

// Totals sums money and points over lines.
func Totals(lines []Line) (decimal.Decimal, int64) {
	subtotal := decimal.Zero
	var points int64
	for i := range lines {
		subtotal = subtotal.Add(lines[i].Subtotal())
		points += lines[i].PointsTotal()
	}
	return subtotal, points
}
