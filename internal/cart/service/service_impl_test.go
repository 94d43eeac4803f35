package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tradeway/internal/cache"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	cartrepo "github.com/smallbiznis/tradeway/internal/cart/repository"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/tradeway/internal/catalog/repository"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	clientrepo "github.com/smallbiznis/tradeway/internal/client/repository"
	clientservice "github.com/smallbiznis/tradeway/internal/client/service"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	pointsrepo "github.com/smallbiznis/tradeway/internal/points/repository"
	pointsservice "github.com/smallbiznis/tradeway/internal/points/service"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	pricingservice "github.com/smallbiznis/tradeway/internal/pricing/service"
	"github.com/smallbiznis/tradeway/internal/testutil"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	tierrepo "github.com/smallbiznis/tradeway/internal/tierpricing/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type cartFixture struct {
	t      *testing.T
	db     *gorm.DB
	node   *snowflake.Node
	orgID  snowflake.ID
	svc    cartdomain.Service
	points pointsdomain.Service
	client clientdomain.Client
	ctx    context.Context
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	node := testutil.MustNode(t)
	db := testutil.OpenDB(t,
		&catalogdomain.Product{},
		&catalogdomain.Variation{},
		&catalogdomain.AffiliateProduct{},
		&catalogdomain.AffiliateLevel{},
		&tierdomain.Rule{},
		&clientdomain.Client{},
		&pointsdomain.Balance{},
		&pointsdomain.LogEntry{},
		&cartdomain.Cart{},
		&cartdomain.Line{},
	)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	catalog := catalogrepo.Provide()

	clients := clientservice.New(clientservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: clientrepo.Provide(), CatalogRepo: catalog,
	})
	points := pointsservice.New(pointsservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: pointsrepo.Provide(),
	})
	resolver := pricingservice.NewResolver(pricingservice.ResolverParams{
		Log: log, CatalogRepo: catalog, Cache: cache.NewPriceCacheWithTTL(time.Minute),
	})
	quoter := pricingservice.NewQuoter(pricingservice.QuoterParams{
		Log: log, Resolver: resolver, TierRepo: tierrepo.Provide(),
	})

	f := &cartFixture{
		t:      t,
		db:     db,
		node:   node,
		orgID:  node.Generate(),
		points: points,
		svc: New(Params{
			DB: db, Log: log, GenID: node, Clock: clk,
			Repo:     cartrepo.Provide(),
			Clients:  clients,
			Resolver: resolver,
			Quoter:   quoter,
			Points:   points,
		}),
	}
	f.client = f.newClient(nil)
	f.ctx = f.asClient(f.client)
	return f
}

func (f *cartFixture) newClient(levelID *snowflake.ID) clientdomain.Client {
	f.t.Helper()
	client := clientdomain.Client{
		ID:       f.node.Generate(),
		OrgID:    f.orgID,
		UserID:   f.node.Generate(),
		Name:     "shopper",
		Email:    "shopper@example.com",
		LevelID:  levelID,
		Metadata: datatypes.JSONMap{},
	}
	require.NoError(f.t, f.db.Create(&client).Error)
	return client
}

func (f *cartFixture) asClient(client clientdomain.Client) context.Context {
	ctx := orgcontext.WithOrgID(context.Background(), int64(f.orgID))
	return orgcontext.WithClientID(ctx, int64(client.ID))
}

func (f *cartFixture) product(price string) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	require.NoError(f.t, f.db.Create(&catalogdomain.Product{
		ID:     id,
		OrgID:  f.orgID,
		Name:   "product",
		Kind:   catalogdomain.ProductKindSimple,
		Prices: datatypes.NewJSONType(catalogdomain.PriceTable{"US": {Regular: decimal.RequireFromString(price)}}),
		Costs:  datatypes.NewJSONType(catalogdomain.CostTable{}),
	}).Error)
	return id
}

func (f *cartFixture) level(required int64) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	require.NoError(f.t, f.db.Create(&catalogdomain.AffiliateLevel{ID: id, OrgID: f.orgID, Name: "level", RequiredPoints: required}).Error)
	return id
}

func (f *cartFixture) reward(points int64, minLevel *snowflake.ID) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	require.NoError(f.t, f.db.Create(&catalogdomain.AffiliateProduct{
		ID:         id,
		OrgID:      f.orgID,
		Name:       "reward",
		Points:     datatypes.NewJSONType(catalogdomain.PointsTable{catalogdomain.DefaultLevelKey: {"US": {Regular: points}}}),
		MinLevelID: minLevel,
	}).Error)
	return id
}

func (f *cartFixture) grant(client clientdomain.Client, points int64) {
	f.t.Helper()
	ctx := orgcontext.WithOrgID(context.Background(), int64(f.orgID))
	_, err := f.points.Adjust(ctx, pointsdomain.AdjustRequest{ClientID: client.ID.String(), Points: points})
	require.NoError(f.t, err)
}

func (f *cartFixture) balance(client clientdomain.Client) int64 {
	f.t.Helper()
	ctx := orgcontext.WithOrgID(context.Background(), int64(f.orgID))
	balance, err := f.points.GetBalance(ctx, client.ID.String())
	require.NoError(f.t, err)
	return balance.PointsCurrent
}

func (f *cartFixture) open() *cartdomain.View {
	f.t.Helper()
	view, err := f.svc.Open(f.ctx, cartdomain.OpenRequest{Country: "us"})
	require.NoError(f.t, err)
	return view
}

func lineFor(view *cartdomain.View, productID snowflake.ID) *cartdomain.Line {
	for i := range view.Lines {
		if view.Lines[i].ProductID == productID || view.Lines[i].AffiliateProductID == productID {
			return &view.Lines[i]
		}
	}
	return nil
}

func TestOpenReusesTheOpenCart(t *testing.T) {
	f := newCartFixture(t)
	first := f.open()
	second := f.open()
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "US", first.Country)
	assert.Equal(t, cartdomain.StatusOpen, first.Status)
	assert.Empty(t, first.Lines)
}

func TestTierPricingReevaluatedOnEveryMutation(t *testing.T) {
	f := newCartFixture(t)
	a := f.product("12.00")
	b := f.product("12.00")
	require.NoError(t, tierrepo.Provide().Insert(context.Background(), f.db, &tierdomain.Rule{
		ID:         f.node.Generate(),
		OrgID:      f.orgID,
		Name:       "bulk",
		Countries:  []string{"US"},
		ProductIDs: []snowflake.ID{a, b},
		Steps: []tierdomain.Step{
			{From: 1, To: 9, Price: decimal.RequireFromString("10.00")},
			{From: 10, To: 0, Price: decimal.RequireFromString("8.00")},
		},
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}))

	cart := f.open()
	view, err := f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: a.String(), Quantity: 5})
	require.NoError(t, err)
	assert.True(t, lineFor(view, a).UnitPrice.Equal(decimal.RequireFromString("10.00")))

	view, err = f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: b.String(), Quantity: 7})
	require.NoError(t, err)
	assert.True(t, lineFor(view, a).UnitPrice.Equal(decimal.RequireFromString("8.00")), lineFor(view, a).UnitPrice.String())
	assert.True(t, lineFor(view, b).UnitPrice.Equal(decimal.RequireFromString("8.00")))
	assert.True(t, view.Subtotal.Equal(decimal.RequireFromString("96.00")), view.Subtotal.String())

	view, err = f.svc.SetQuantity(f.ctx, cart.ID.String(), lineFor(view, b).ID.String(), 1)
	require.NoError(t, err)
	assert.True(t, lineFor(view, a).UnitPrice.Equal(decimal.RequireFromString("10.00")))

	stored, err := cartrepo.Provide().ListLines(context.Background(), f.db, cart.ID)
	require.NoError(t, err)
	for _, line := range stored {
		assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("10.00")), line.UnitPrice.String())
	}
	assert.Equal(t, cartdomain.ContentHash(stored), view.ContentHash)
}

func TestAddSameItemMergesQuantity(t *testing.T) {
	f := newCartFixture(t)
	item := f.product("3.00")
	cart := f.open()

	_, err := f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: item.String(), Quantity: 1})
	require.NoError(t, err)
	view, err := f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: item.String(), Quantity: 2})
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(3), view.Lines[0].Quantity)
}

func TestMergedLineCrossesTierStep(t *testing.T) {
	f := newCartFixture(t)
	item := f.product("12.00")
	require.NoError(t, tierrepo.Provide().Insert(context.Background(), f.db, &tierdomain.Rule{
		ID:         f.node.Generate(),
		OrgID:      f.orgID,
		Name:       "bulk",
		Countries:  []string{"US"},
		ProductIDs: []snowflake.ID{item},
		Steps: []tierdomain.Step{
			{From: 1, To: 9, Price: decimal.RequireFromString("10.00")},
			{From: 10, To: 0, Price: decimal.RequireFromString("8.00")},
		},
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}))
	cart := f.open()

	view, err := f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: item.String(), Quantity: 5})
	require.NoError(t, err)
	assert.True(t, lineFor(view, item).UnitPrice.Equal(decimal.RequireFromString("10.00")))

	view, err = f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: item.String(), Quantity: 7})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(12), view.Lines[0].Quantity)
	assert.True(t, view.Subtotal.Equal(decimal.RequireFromString("96.00")), view.Subtotal.String())

	stored, err := cartrepo.Provide().ListLines(context.Background(), f.db, cart.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].UnitPrice.Equal(decimal.RequireFromString("8.00")), stored[0].UnitPrice.String())
	assert.Equal(t, cartdomain.ContentHash(stored), view.ContentHash)
}

func TestAffiliateLinesRedeemAndRefundPoints(t *testing.T) {
	f := newCartFixture(t)
	f.grant(f.client, 1000)
	reward := f.reward(200, nil)
	cart := f.open()

	view, err := f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{AffiliateProductID: reward.String(), Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(600), f.balance(f.client))
	assert.Equal(t, int64(400), view.PointsTotal)

	line := lineFor(view, reward)
	_, err = f.svc.SetQuantity(f.ctx, cart.ID.String(), line.ID.String(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(800), f.balance(f.client))

	_, err = f.svc.RemoveLine(f.ctx, cart.ID.String(), line.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), f.balance(f.client))

	var refunds int64
	require.NoError(t, f.db.Model(&pointsdomain.LogEntry{}).Where("action = ?", pointsdomain.ActionRefund).Count(&refunds).Error)
	assert.Equal(t, int64(2), refunds)
}

func TestAffiliateLineRejectedOnInsufficientBalance(t *testing.T) {
	f := newCartFixture(t)
	f.grant(f.client, 100)
	reward := f.reward(200, nil)
	cart := f.open()

	_, err := f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{AffiliateProductID: reward.String(), Quantity: 1})
	require.ErrorIs(t, err, pointsdomain.ErrInsufficientBalance)

	view, err := f.svc.Get(f.ctx, cart.ID.String())
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, int64(100), f.balance(f.client))
}

func TestAffiliateLineGatedByLevel(t *testing.T) {
	f := newCartFixture(t)
	l1 := f.level(100)
	l2 := f.level(500)
	low := f.newClient(&l1)
	f.grant(low, 10_000)
	reward := f.reward(50, &l2)

	ctx := f.asClient(low)
	cart, err := f.svc.Open(ctx, cartdomain.OpenRequest{Country: "US"})
	require.NoError(t, err)

	_, err = f.svc.AddLine(ctx, cart.ID.String(), cartdomain.AddLineRequest{AffiliateProductID: reward.String(), Quantity: 1})
	assert.True(t, errors.Is(err, pricingdomain.ErrLevelTooLow), "got %v", err)
	assert.Equal(t, int64(10_000), f.balance(low))
}

func TestCartOwnershipAndItemValidation(t *testing.T) {
	f := newCartFixture(t)
	item := f.product("1.00")
	cart := f.open()

	stranger := f.newClient(nil)
	_, err := f.svc.AddLine(f.asClient(stranger), cart.ID.String(), cartdomain.AddLineRequest{ProductID: item.String(), Quantity: 1})
	assert.ErrorIs(t, err, cartdomain.ErrNotOwner)

	_, err = f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: item.String(), AffiliateProductID: item.String(), Quantity: 1})
	assert.ErrorIs(t, err, cartdomain.ErrInvalidItem)

	_, err = f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: item.String(), Quantity: 0})
	assert.ErrorIs(t, err, cartdomain.ErrInvalidQuantity)

	_, err = f.svc.RemoveLine(f.ctx, cart.ID.String(), "12345")
	assert.ErrorIs(t, err, cartdomain.ErrLineNotFound)

	require.NoError(t, f.db.Model(&cartdomain.Cart{}).Where("id = ?", cart.ID).Update("status", cartdomain.StatusClosed).Error)
	_, err = f.svc.AddLine(f.ctx, cart.ID.String(), cartdomain.AddLineRequest{ProductID: item.String(), Quantity: 1})
	assert.ErrorIs(t, err, cartdomain.ErrClosed)
}
