package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo catalogdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo catalogdomain.Repository
}

func New(p Params) catalogdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetProduct(ctx context.Context, id string) (*catalogdomain.ProductView, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, catalogdomain.ErrInvalidOrganization
	}
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.FindProduct(ctx, s.db, orgID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, catalogdomain.ErrNotFound
	}

	view := &catalogdomain.ProductView{Product: *product}
	if product.Kind == catalogdomain.ProductKindVariable {
		variations, err := s.repo.ListVariations(ctx, s.db, product.ID)
		if err != nil {
			return nil, err
		}
		view.Variations = variations
	}
	return view, nil
}

func (s *Service) GetAffiliateProduct(ctx context.Context, id string) (*catalogdomain.AffiliateProduct, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, catalogdomain.ErrInvalidOrganization
	}
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.FindAffiliateProduct(ctx, s.db, orgID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return product, nil
}

func (s *Service) ListLevels(ctx context.Context) ([]catalogdomain.AffiliateLevel, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, catalogdomain.ErrInvalidOrganization
	}
	return s.repo.ListLevels(ctx, s.db, orgID)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, catalogdomain.ErrInvalidID
	}
	return id, nil
}
