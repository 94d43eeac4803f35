package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	inventorydomain "github.com/smallbiznis/tradeway/internal/inventory/domain"
	"github.com/smallbiznis/tradeway/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() inventorydomain.Repository {
	return &repo{}
}

const stockColumns = `id, org_id, warehouse_id, product_id, country, quantity, created_at, updated_at`

func (r *repo) LockRows(ctx context.Context, tx *gorm.DB, orgID, productID snowflake.ID, country string) ([]inventorydomain.WarehouseStock, error) {
	var items []inventorydomain.WarehouseStock
	err := tx.WithContext(ctx).Raw(
		`SELECT `+stockColumns+` FROM warehouse_stocks
		 WHERE org_id = ? AND product_id = ? AND country = ?
		 ORDER BY quantity DESC, id ASC`+db.ForUpdate(tx),
		orgID,
		productID,
		country,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Decrement(ctx context.Context, tx *gorm.DB, id snowflake.ID, amount int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE warehouse_stocks SET quantity = quantity - ?, updated_at = ? WHERE id = ?`,
		amount,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) SetQuantity(ctx context.Context, tx *gorm.DB, id snowflake.ID, quantity int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE warehouse_stocks SET quantity = ?, updated_at = ? WHERE id = ?`,
		quantity,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) Upsert(ctx context.Context, tx *gorm.DB, stock *inventorydomain.WarehouseStock) error {
	result := tx.WithContext(ctx).Exec(
		`UPDATE warehouse_stocks SET quantity = ?, updated_at = ?
		 WHERE org_id = ? AND warehouse_id = ? AND product_id = ? AND country = ?`,
		stock.Quantity,
		stock.UpdatedAt,
		stock.OrgID,
		stock.WarehouseID,
		stock.ProductID,
		stock.Country,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO warehouse_stocks (`+stockColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stock.ID,
		stock.OrgID,
		stock.WarehouseID,
		stock.ProductID,
		stock.Country,
		stock.Quantity,
		stock.CreatedAt,
		stock.UpdatedAt,
	).Error
}

func (r *repo) ListByProduct(ctx context.Context, tx *gorm.DB, orgID, productID snowflake.ID) ([]inventorydomain.WarehouseStock, error) {
	var items []inventorydomain.WarehouseStock
	err := tx.WithContext(ctx).Raw(
		`SELECT `+stockColumns+` FROM warehouse_stocks
		 WHERE org_id = ? AND product_id = ?
		 ORDER BY country ASC, warehouse_id ASC`,
		orgID,
		productID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
