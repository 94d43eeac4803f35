package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	"github.com/smallbiznis/tradeway/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() orderdomain.Repository {
	return &repo{}
}

const orderColumns = `id, org_id, client_id, cart_id, sequence_number, status, country, subtotal,
	points_total, shipping_cost, payment_method, payment_reference, shipping_address, tracking_number,
	metadata, content_hash, parent_order_id, root_order_id, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, order *orderdomain.Order) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.OrgID,
		order.ClientID,
		order.CartID,
		order.SequenceNumber,
		order.Status,
		order.Country,
		order.Subtotal,
		order.PointsTotal,
		order.ShippingCost,
		order.PaymentMethod,
		order.PaymentReference,
		order.ShippingAddress,
		order.TrackingNumber,
		order.Metadata,
		order.ContentHash,
		order.ParentOrderID,
		order.RootOrderID,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*orderdomain.Order, error) {
	return r.findOne(ctx, tx, `WHERE org_id = ? AND id = ?`, "", orgID, id)
}

func (r *repo) Lock(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*orderdomain.Order, error) {
	return r.findOne(ctx, tx, `WHERE org_id = ? AND id = ?`, db.ForUpdate(tx), orgID, id)
}

func (r *repo) FindChild(ctx context.Context, tx *gorm.DB, parentID, orgID snowflake.ID) (*orderdomain.Order, error) {
	return r.findOne(ctx, tx, `WHERE parent_order_id = ? AND org_id = ?`, "", parentID, orgID)
}

func (r *repo) findOne(ctx context.Context, tx *gorm.DB, where, suffix string, args ...any) (*orderdomain.Order, error) {
	var order orderdomain.Order
	err := tx.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders `+where+` LIMIT 1`+suffix,
		args...,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) ListChildren(ctx context.Context, tx *gorm.DB, parentID snowflake.ID) ([]orderdomain.Order, error) {
	var items []orderdomain.Order
	err := tx.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE parent_order_id = ? ORDER BY id ASC`,
		parentID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, tx *gorm.DB, filter orderdomain.ListFilter) ([]orderdomain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE org_id = ?`
	args := []any{filter.OrgID}
	if filter.ClientID != 0 {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if filter.AfterID != 0 {
		query += ` AND id < ?`
		args = append(args, filter.AfterID)
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var items []orderdomain.Order
	if err := tx.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, tx *gorm.DB, order *orderdomain.Order) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE orders SET subtotal = ?, points_total = ?, payment_method = ?, payment_reference = ?,
			shipping_address = ?, tracking_number = ?, metadata = ?, content_hash = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		order.Subtotal,
		order.PointsTotal,
		order.PaymentMethod,
		order.PaymentReference,
		order.ShippingAddress,
		order.TrackingNumber,
		order.Metadata,
		order.ContentHash,
		order.UpdatedAt,
		order.OrgID,
		order.ID,
	).Error
}

func (r *repo) BumpSequence(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE order_sequences SET last_value = last_value + 1 WHERE org_id = ?`,
		orgID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertSequence(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, value int64) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO order_sequences (org_id, last_value) VALUES (?, ?)`,
		orgID,
		value,
	).Error
}

func (r *repo) SetSequence(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, value int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE order_sequences SET last_value = ? WHERE org_id = ?`,
		value,
		orgID,
	).Error
}

func (r *repo) CurrentSequence(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (int64, error) {
	var value int64
	err := tx.WithContext(ctx).Raw(
		`SELECT last_value FROM order_sequences WHERE org_id = ?`,
		orgID,
	).Scan(&value).Error
	return value, err
}

func (r *repo) MaxSequenceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (int64, error) {
	var value int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(sequence_number), 0) FROM orders WHERE org_id = ?`,
		orgID,
	).Scan(&value).Error
	return value, err
}
