package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/tradeway/internal/catalog/repository"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	"github.com/smallbiznis/tradeway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func TestCatalogReadsAreScopedToOrganization(t *testing.T) {
	node := testutil.MustNode(t)
	db := testutil.OpenDB(t,
		&catalogdomain.Product{},
		&catalogdomain.Variation{},
		&catalogdomain.AffiliateProduct{},
		&catalogdomain.AffiliateLevel{},
	)
	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: catalogrepo.Provide()})

	orgID := node.Generate()
	otherOrg := node.Generate()

	product := catalogdomain.Product{
		ID:     node.Generate(),
		OrgID:  orgID,
		Name:   "Tee",
		Kind:   catalogdomain.ProductKindVariable,
		Prices: datatypes.NewJSONType(catalogdomain.PriceTable{"US": {Regular: decimal.RequireFromString("12.50")}}),
		Costs:  datatypes.NewJSONType(catalogdomain.CostTable{}),
	}
	require.NoError(t, db.Create(&product).Error)
	for _, name := range []string{"S", "M"} {
		require.NoError(t, db.Create(&catalogdomain.Variation{
			ID:        node.Generate(),
			OrgID:     orgID,
			ProductID: product.ID,
			Name:      name,
			Prices:    datatypes.NewJSONType(catalogdomain.PriceTable{}),
			Costs:     datatypes.NewJSONType(catalogdomain.CostTable{}),
		}).Error)
	}
	gold := catalogdomain.AffiliateLevel{ID: node.Generate(), OrgID: orgID, Name: "gold", RequiredPoints: 500}
	bronze := catalogdomain.AffiliateLevel{ID: node.Generate(), OrgID: orgID, Name: "bronze", RequiredPoints: 0}
	require.NoError(t, db.Create(&gold).Error)
	require.NoError(t, db.Create(&bronze).Error)

	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	view, err := svc.GetProduct(ctx, product.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Tee", view.Name)
	require.Len(t, view.Variations, 2)
	assert.Equal(t, "S", view.Variations[0].Name)
	price, ok := view.Prices.Data().Price("US")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("12.50")))

	levels, err := svc.ListLevels(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "bronze", levels[0].Name)

	foreign := orgcontext.WithOrgID(context.Background(), int64(otherOrg))
	_, err = svc.GetProduct(foreign, product.ID.String())
	assert.ErrorIs(t, err, catalogdomain.ErrNotFound)

	_, err = svc.GetAffiliateProduct(ctx, product.ID.String())
	assert.ErrorIs(t, err, catalogdomain.ErrNotFound)
}

func TestCatalogRejectsBadInput(t *testing.T) {
	db := testutil.OpenDB(t, &catalogdomain.Product{})
	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: catalogrepo.Provide()})

	_, err := svc.GetProduct(context.Background(), "1")
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidOrganization)

	ctx := orgcontext.WithOrgID(context.Background(), 1)
	_, err = svc.GetProduct(ctx, "not-an-id")
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidID)
	_, err = svc.GetProduct(ctx, "0")
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidID)
}
