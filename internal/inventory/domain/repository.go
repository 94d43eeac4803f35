package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// LockRows returns every row of the item, largest quantity first, locked for update.
	LockRows(ctx context.Context, db *gorm.DB, orgID, productID snowflake.ID, country string) ([]WarehouseStock, error)
	Decrement(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64) error
	SetQuantity(ctx context.Context, db *gorm.DB, id snowflake.ID, quantity int64) error
	Upsert(ctx context.Context, db *gorm.DB, stock *WarehouseStock) error
	ListByProduct(ctx context.Context, db *gorm.DB, orgID, productID snowflake.ID) ([]WarehouseStock, error)
}
