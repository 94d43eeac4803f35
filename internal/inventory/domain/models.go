package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// WarehouseStock is the on-hand quantity of one stock item (a product or a
// variation) in one warehouse for one country. Quantity may be negative when
// backorders were accepted.
type WarehouseStock struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	WarehouseID snowflake.ID `json:"warehouse_id" gorm:"not null;uniqueIndex:ux_warehouse_stock_item"`
	ProductID   snowflake.ID `json:"product_id" gorm:"not null;uniqueIndex:ux_warehouse_stock_item;index:ix_warehouse_stock_lookup"`
	Country     string       `json:"country" gorm:"type:text;not null;uniqueIndex:ux_warehouse_stock_item;index:ix_warehouse_stock_lookup"`
	Quantity    int64        `json:"quantity" gorm:"not null;default:0"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (WarehouseStock) TableName() string { return "warehouse_stocks" }

// Demand asks for Quantity units of a stock item in a country.
type Demand struct {
	ProductID       snowflake.ID
	Country         string
	Quantity        int64
	AllowBackorders bool
}
