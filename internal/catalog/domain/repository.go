package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindProduct(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Product, error)
	FindProductByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	FindVariation(ctx context.Context, db *gorm.DB, productID, id snowflake.ID) (*Variation, error)
	FindVariationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Variation, error)
	ListVariations(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]Variation, error)
	FindAffiliateProduct(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*AffiliateProduct, error)
	FindLevel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*AffiliateLevel, error)
	ListLevels(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]AffiliateLevel, error)
	ListMappingsByTargets(ctx context.Context, db *gorm.DB, targetIDs []snowflake.ID) ([]SharedProductMapping, error)
}
