package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

const productColumns = `id, org_id, name, kind, prices, costs, manage_stock, allow_backorders, created_at, updated_at`

func (r *repo) FindProduct(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) FindProductByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id = ?`,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) FindVariation(ctx context.Context, db *gorm.DB, productID, id snowflake.ID) (*catalogdomain.Variation, error) {
	var variation catalogdomain.Variation
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, product_id, name, prices, costs, created_at, updated_at
		 FROM product_variations WHERE product_id = ? AND id = ?`,
		productID,
		id,
	).Scan(&variation).Error
	if err != nil {
		return nil, err
	}
	if variation.ID == 0 {
		return nil, nil
	}
	return &variation, nil
}

func (r *repo) FindVariationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Variation, error) {
	var variation catalogdomain.Variation
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, product_id, name, prices, costs, created_at, updated_at
		 FROM product_variations WHERE id = ?`,
		id,
	).Scan(&variation).Error
	if err != nil {
		return nil, err
	}
	if variation.ID == 0 {
		return nil, nil
	}
	return &variation, nil
}

func (r *repo) ListVariations(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]catalogdomain.Variation, error) {
	var items []catalogdomain.Variation
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, product_id, name, prices, costs, created_at, updated_at
		 FROM product_variations WHERE product_id = ? ORDER BY id ASC`,
		productID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindAffiliateProduct(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*catalogdomain.AffiliateProduct, error) {
	var product catalogdomain.AffiliateProduct
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, points, min_level_id, manage_stock, created_at, updated_at
		 FROM affiliate_products WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) FindLevel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*catalogdomain.AffiliateLevel, error) {
	var level catalogdomain.AffiliateLevel
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, required_points, created_at
		 FROM affiliate_levels WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&level).Error
	if err != nil {
		return nil, err
	}
	if level.ID == 0 {
		return nil, nil
	}
	return &level, nil
}

func (r *repo) ListLevels(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]catalogdomain.AffiliateLevel, error) {
	var items []catalogdomain.AffiliateLevel
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, required_points, created_at
		 FROM affiliate_levels WHERE org_id = ? ORDER BY required_points ASC, id ASC`,
		orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListMappingsByTargets(ctx context.Context, db *gorm.DB, targetIDs []snowflake.ID) ([]catalogdomain.SharedProductMapping, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	var items []catalogdomain.SharedProductMapping
	err := db.WithContext(ctx).Raw(
		`SELECT id, target_org_id, target_product_id, source_org_id, source_product_id, created_at
		 FROM shared_product_mappings
		 WHERE target_product_id IN ?
		 ORDER BY id ASC`,
		targetIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
