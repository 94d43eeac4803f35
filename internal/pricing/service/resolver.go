package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tradeway/internal/cache"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ResolverParams struct {
	fx.In

	Log         *zap.Logger
	CatalogRepo catalogdomain.Repository
	Cache       cache.PriceCache
}

type Resolver struct {
	log         *zap.Logger
	catalogRepo catalogdomain.Repository
	cache       cache.PriceCache
}

func NewResolver(p ResolverParams) pricingdomain.Resolver {
	return &Resolver{
		log:         p.Log.Named("pricing.resolver"),
		catalogRepo: p.CatalogRepo,
		cache:       p.Cache,
	}
}

func (r *Resolver) Resolve(ctx context.Context, db *gorm.DB, req pricingdomain.ResolveRequest) (pricingdomain.Price, error) {
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if req.OrgID == 0 || req.ItemID == 0 || country == "" {
		return pricingdomain.Price{}, pricingdomain.ErrInvalidInput
	}

	key := cache.PriceKey{
		OrgID:       req.OrgID,
		ItemID:      req.ItemID,
		VariationID: req.VariationID,
		Country:     country,
		LevelID:     req.LevelID,
	}
	if entry, ok := r.cache.Get(key); ok {
		return pricingdomain.Price{UnitPrice: entry.UnitPrice, Points: entry.Points, IsPoints: entry.IsPoints}, nil
	}

	product, err := r.catalogRepo.FindProduct(ctx, db, req.OrgID, req.ItemID)
	if err != nil {
		return pricingdomain.Price{}, err
	}

	var price pricingdomain.Price
	if product != nil {
		price, err = r.resolveProduct(ctx, db, product, req.VariationID, country)
	} else {
		price, err = r.resolveAffiliate(ctx, db, req.OrgID, req.ItemID, req.LevelID, country)
	}
	if err != nil {
		return pricingdomain.Price{}, err
	}

	r.cache.Set(key, cache.PriceEntry{UnitPrice: price.UnitPrice, Points: price.Points, IsPoints: price.IsPoints})
	return price, nil
}

func (r *Resolver) resolveProduct(
	ctx context.Context,
	db *gorm.DB,
	product *catalogdomain.Product,
	variationID snowflake.ID,
	country string,
) (pricingdomain.Price, error) {
	table := product.Prices.Data()
	if product.Kind == catalogdomain.ProductKindVariable {
		if variationID == 0 {
			return pricingdomain.Price{}, pricingdomain.ErrVariationMissing
		}
		variation, err := r.catalogRepo.FindVariation(ctx, db, product.ID, variationID)
		if err != nil {
			return pricingdomain.Price{}, err
		}
		if variation == nil {
			return pricingdomain.Price{}, pricingdomain.ErrNotFound
		}
		table = variation.Prices.Data()
	}

	amount, ok := table.Price(country)
	if !ok {
		return pricingdomain.Price{}, pricingdomain.ErrNotFound
	}
	return pricingdomain.Price{UnitPrice: amount}, nil
}

// resolveAffiliate checks the level gate before looking at the points table.
func (r *Resolver) resolveAffiliate(
	ctx context.Context,
	db *gorm.DB,
	orgID, itemID, levelID snowflake.ID,
	country string,
) (pricingdomain.Price, error) {
	affiliate, err := r.catalogRepo.FindAffiliateProduct(ctx, db, orgID, itemID)
	if err != nil {
		return pricingdomain.Price{}, err
	}
	if affiliate == nil {
		return pricingdomain.Price{}, pricingdomain.ErrNotFound
	}

	if affiliate.MinLevelID != nil && *affiliate.MinLevelID != 0 {
		allowed, err := r.levelAllows(ctx, db, orgID, *affiliate.MinLevelID, levelID)
		if err != nil {
			return pricingdomain.Price{}, err
		}
		if !allowed {
			r.log.Debug("affiliate product gated",
				zap.String("affiliate_product_id", itemID.String()),
				zap.String("level_id", levelID.String()),
			)
			return pricingdomain.Price{}, pricingdomain.ErrLevelTooLow
		}
	}

	table := affiliate.Points.Data()
	if levelID != 0 {
		if points, ok := table.Price(levelID.String(), country); ok {
			return pricingdomain.Price{Points: points, IsPoints: true}, nil
		}
	}
	points, ok := table.Price(catalogdomain.DefaultLevelKey, country)
	if !ok {
		return pricingdomain.Price{}, pricingdomain.ErrNotFound
	}
	return pricingdomain.Price{Points: points, IsPoints: true}, nil
}

// levelAllows compares thresholds; a client without a known level sits at zero.
func (r *Resolver) levelAllows(ctx context.Context, db *gorm.DB, orgID, minLevelID, levelID snowflake.ID) (bool, error) {
	minLevel, err := r.catalogRepo.FindLevel(ctx, db, orgID, minLevelID)
	if err != nil {
		return false, err
	}
	if minLevel == nil || minLevel.RequiredPoints <= 0 {
		return true, nil
	}

	var have int64
	if levelID != 0 {
		level, err := r.catalogRepo.FindLevel(ctx, db, orgID, levelID)
		if err != nil {
			return false, err
		}
		if level != nil {
			have = level.RequiredPoints
		}
	}
	return have >= minLevel.RequiredPoints, nil
}
