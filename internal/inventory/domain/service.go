package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Reserve decrements stock for all demands or none. It must run inside db's transaction.
	Reserve(ctx context.Context, db *gorm.DB, orgID snowflake.ID, demands []Demand) error
	// AdjustForCartLine moves a single row by delta without the all-or-nothing check.
	AdjustForCartLine(ctx context.Context, db *gorm.DB, orgID snowflake.ID, demand Demand) error

	SetStock(ctx context.Context, req SetStockRequest) (*WarehouseStock, error)
	ListStock(ctx context.Context, productID string) ([]WarehouseStock, error)
}

type SetStockRequest struct {
	WarehouseID string `json:"warehouse_id"`
	ProductID   string `json:"product_id"`
	Country     string `json:"country"`
	Quantity    int64  `json:"quantity"`
}
