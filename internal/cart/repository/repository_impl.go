package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	"github.com/smallbiznis/tradeway/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() cartdomain.Repository {
	return &repo{}
}

const (
	cartColumns = `id, org_id, client_id, country, status, content_hash, created_at, updated_at`
	lineColumns = `id, cart_id, org_id, product_id, variation_id, affiliate_product_id, quantity,
		unit_price, points_price, created_at, updated_at`
)

func (r *repo) InsertCart(ctx context.Context, tx *gorm.DB, cart *cartdomain.Cart) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO carts (`+cartColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cart.ID,
		cart.OrgID,
		cart.ClientID,
		cart.Country,
		cart.Status,
		cart.ContentHash,
		cart.CreatedAt,
		cart.UpdatedAt,
	).Error
}

func (r *repo) FindCart(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*cartdomain.Cart, error) {
	return r.findCart(ctx, tx, orgID, id, "")
}

func (r *repo) LockCart(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*cartdomain.Cart, error) {
	return r.findCart(ctx, tx, orgID, id, db.ForUpdate(tx))
}

func (r *repo) findCart(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, suffix string) (*cartdomain.Cart, error) {
	var cart cartdomain.Cart
	err := tx.WithContext(ctx).Raw(
		`SELECT `+cartColumns+` FROM carts WHERE org_id = ? AND id = ?`+suffix,
		orgID,
		id,
	).Scan(&cart).Error
	if err != nil {
		return nil, err
	}
	if cart.ID == 0 {
		return nil, nil
	}
	return &cart, nil
}

func (r *repo) FindOpenCart(ctx context.Context, tx *gorm.DB, orgID, clientID snowflake.ID) (*cartdomain.Cart, error) {
	var cart cartdomain.Cart
	err := tx.WithContext(ctx).Raw(
		`SELECT `+cartColumns+` FROM carts
		 WHERE org_id = ? AND client_id = ? AND status = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		orgID,
		clientID,
		cartdomain.StatusOpen,
	).Scan(&cart).Error
	if err != nil {
		return nil, err
	}
	if cart.ID == 0 {
		return nil, nil
	}
	return &cart, nil
}

func (r *repo) UpdateCart(ctx context.Context, tx *gorm.DB, cart *cartdomain.Cart) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE carts SET status = ?, content_hash = ?, updated_at = ? WHERE id = ?`,
		cart.Status,
		cart.ContentHash,
		cart.UpdatedAt,
		cart.ID,
	).Error
}

func (r *repo) ListLines(ctx context.Context, tx *gorm.DB, cartID snowflake.ID) ([]cartdomain.Line, error) {
	var items []cartdomain.Line
	err := tx.WithContext(ctx).Raw(
		`SELECT `+lineColumns+` FROM cart_lines WHERE cart_id = ? ORDER BY id ASC`,
		cartID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertLine(ctx context.Context, tx *gorm.DB, line *cartdomain.Line) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO cart_lines (`+lineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line.ID,
		line.CartID,
		line.OrgID,
		line.ProductID,
		line.VariationID,
		line.AffiliateProductID,
		line.Quantity,
		line.UnitPrice,
		line.PointsPrice,
		line.CreatedAt,
		line.UpdatedAt,
	).Error
}

func (r *repo) UpdateLineQuantity(ctx context.Context, tx *gorm.DB, id snowflake.ID, quantity int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE cart_lines SET quantity = ?, updated_at = ? WHERE id = ?`,
		quantity,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) UpdateLinePrice(ctx context.Context, tx *gorm.DB, id snowflake.ID, unitPrice decimal.Decimal, pointsPrice int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE cart_lines SET unit_price = ?, points_price = ?, updated_at = ? WHERE id = ?`,
		unitPrice,
		pointsPrice,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) DeleteLine(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	return tx.WithContext(ctx).Exec(`DELETE FROM cart_lines WHERE id = ?`, id).Error
}
