package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/tradeway/internal/catalog/repository"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	"github.com/smallbiznis/tradeway/internal/testutil"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	tierrepo "github.com/smallbiznis/tradeway/internal/tierpricing/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func setupTierService(t *testing.T) (tierdomain.Service, context.Context, snowflake.ID) {
	t.Helper()
	node := testutil.MustNode(t)
	db := testutil.OpenDB(t, &catalogdomain.Product{}, &catalogdomain.Variation{}, &tierdomain.Rule{})

	orgID := node.Generate()
	productID := node.Generate()
	require.NoError(t, db.Create(&catalogdomain.Product{
		ID:     productID,
		OrgID:  orgID,
		Name:   "Widget",
		Kind:   catalogdomain.ProductKindSimple,
		Prices: datatypes.NewJSONType(catalogdomain.PriceTable{"US": {Regular: decimal.NewFromInt(10)}}),
		Costs:  datatypes.NewJSONType(catalogdomain.CostTable{}),
	}).Error)

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:        tierrepo.Provide(),
		CatalogRepo: catalogrepo.Provide(),
	})
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	return svc, ctx, productID
}

func TestCreateMergesLegacyClientAliases(t *testing.T) {
	svc, ctx, productID := setupTierService(t)

	resp, err := svc.Create(ctx, tierdomain.CreateRequest{
		Name:              "bulk",
		Countries:         []string{" us "},
		ProductIDs:        []string{productID.String()},
		TargetedClientIDs: []string{"11"},
		Customers:         []string{"12"},
		Clients:           []string{"11", "13"},
		Steps: []tierdomain.StepRequest{
			{From: 10, To: 0, Price: decimal.RequireFromString("8.00")},
			{From: 1, To: 9, Price: decimal.RequireFromString("10.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"US"}, resp.Countries)
	assert.Equal(t, []string{"11", "12", "13"}, resp.TargetedClientIDs)
	require.Len(t, resp.Steps, 2)
	assert.Equal(t, int64(1), resp.Steps[0].From)

	got, err := svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Len(t, got.Steps, 2)
	assert.True(t, got.Steps[1].Price.Equal(decimal.RequireFromString("8.00")))
}

func TestCreateRejectsBadSteps(t *testing.T) {
	svc, ctx, productID := setupTierService(t)

	cases := map[string][]tierdomain.StepRequest{
		"empty":          nil,
		"overlap":        {{From: 1, To: 10, Price: decimal.NewFromInt(1)}, {From: 10, To: 20, Price: decimal.NewFromInt(1)}},
		"open not last":  {{From: 1, To: 0, Price: decimal.NewFromInt(1)}, {From: 5, To: 9, Price: decimal.NewFromInt(1)}},
		"negative price": {{From: 1, To: 0, Price: decimal.NewFromInt(-1)}},
		"zero from":      {{From: 0, To: 3, Price: decimal.NewFromInt(1)}},
	}
	for name, steps := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, tierdomain.CreateRequest{
				Name:       "bad",
				Countries:  []string{"US"},
				ProductIDs: []string{productID.String()},
				Steps:      steps,
			})
			assert.ErrorIs(t, err, tierdomain.ErrInvalidSteps)
		})
	}
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	svc, ctx, _ := setupTierService(t)

	_, err := svc.Create(ctx, tierdomain.CreateRequest{
		Name:       "ghost",
		Countries:  []string{"US"},
		ProductIDs: []string{"999"},
		Steps:      []tierdomain.StepRequest{{From: 1, Price: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidProduct)
}

func TestDeactivateHidesRuleFromActiveList(t *testing.T) {
	svc, ctx, productID := setupTierService(t)

	resp, err := svc.Create(ctx, tierdomain.CreateRequest{
		Name:       "bulk",
		Countries:  []string{"US"},
		ProductIDs: []string{productID.String()},
		Steps:      []tierdomain.StepRequest{{From: 1, Price: decimal.NewFromInt(5)}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, resp.ID))

	got, err := svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.ErrorIs(t, svc.Deactivate(ctx, "12345"), tierdomain.ErrNotFound)
}
