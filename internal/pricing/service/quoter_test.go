package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	tierrepo "github.com/smallbiznis/tradeway/internal/tierpricing/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (f *fixture) rule(t *testing.T, createdAt time.Time, products []snowflake.ID, targets []snowflake.ID, steps ...tierdomain.Step) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, tierrepo.Provide().Insert(context.Background(), f.db, &tierdomain.Rule{
		ID:                id,
		OrgID:             f.orgID,
		Name:              "rule-" + id.String(),
		Countries:         []string{"US"},
		ProductIDs:        products,
		Steps:             steps,
		TargetedClientIDs: targets,
		Active:            true,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}))
	return id
}

func (f *fixture) quoter() pricingdomain.Quoter {
	return NewQuoter(QuoterParams{Log: zap.NewNop(), Resolver: f.resolver, TierRepo: tierrepo.Provide()})
}

func TestQuoteReevaluatesTierAcrossLines(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, catalogdomain.ProductKindSimple, catalogdomain.PriceTable{"US": {Regular: money("12.00")}})
	b := f.product(t, catalogdomain.ProductKindSimple, catalogdomain.PriceTable{"US": {Regular: money("12.00")}})
	f.rule(t, time.Now().UTC(), []snowflake.ID{a, b}, nil,
		tierdomain.Step{From: 1, To: 9, Price: money("10.00")},
		tierdomain.Step{From: 10, To: 0, Price: money("8.00")},
	)

	req := pricingdomain.QuoteRequest{
		OrgID:   f.orgID,
		Country: "US",
		Lines:   []pricingdomain.QuoteLine{{Key: 1, ProductID: a, Quantity: 5}},
	}
	quoted, err := f.quoter().Quote(context.Background(), f.db, req)
	require.NoError(t, err)
	require.Len(t, quoted, 1)
	assert.True(t, quoted[0].Price.UnitPrice.Equal(money("10.00")), quoted[0].Price.UnitPrice.String())

	req.Lines = append(req.Lines, pricingdomain.QuoteLine{Key: 2, ProductID: b, Quantity: 7})
	quoted, err = f.quoter().Quote(context.Background(), f.db, req)
	require.NoError(t, err)
	require.Len(t, quoted, 2)
	for _, line := range quoted {
		assert.True(t, line.Price.UnitPrice.Equal(money("8.00")), line.Price.UnitPrice.String())
		assert.NotZero(t, line.RuleID)
	}
}

func TestQuoteTargetedRuleBeatsNewerGeneralRule(t *testing.T) {
	f := newFixture(t)
	item := f.product(t, catalogdomain.ProductKindSimple, catalogdomain.PriceTable{"US": {Regular: money("20.00")}})
	client := f.node.Generate()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.rule(t, base, []snowflake.ID{item}, []snowflake.ID{client}, tierdomain.Step{From: 1, Price: money("5.00")})
	f.rule(t, base.Add(time.Hour), []snowflake.ID{item}, nil, tierdomain.Step{From: 1, Price: money("15.00")})

	lines := []pricingdomain.QuoteLine{{Key: 1, ProductID: item, Quantity: 1}}
	quoted, err := f.quoter().Quote(context.Background(), f.db, pricingdomain.QuoteRequest{
		OrgID: f.orgID, ClientID: client, Country: "US", Lines: lines,
	})
	require.NoError(t, err)
	assert.True(t, quoted[0].Price.UnitPrice.Equal(money("5.00")))

	quoted, err = f.quoter().Quote(context.Background(), f.db, pricingdomain.QuoteRequest{
		OrgID: f.orgID, ClientID: f.node.Generate(), Country: "US", Lines: lines,
	})
	require.NoError(t, err)
	assert.True(t, quoted[0].Price.UnitPrice.Equal(money("15.00")))
}

func TestQuoteFallsBackToBasePriceOutsideSteps(t *testing.T) {
	f := newFixture(t)
	item := f.product(t, catalogdomain.ProductKindSimple, catalogdomain.PriceTable{"US": {Regular: money("20.00")}})
	f.rule(t, time.Now().UTC(), []snowflake.ID{item}, nil, tierdomain.Step{From: 10, Price: money("15.00")})

	quoted, err := f.quoter().Quote(context.Background(), f.db, pricingdomain.QuoteRequest{
		OrgID: f.orgID, Country: "US",
		Lines: []pricingdomain.QuoteLine{{Key: 1, ProductID: item, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.True(t, quoted[0].Price.UnitPrice.Equal(decimal.RequireFromString("20.00")))
	assert.Zero(t, quoted[0].RuleID)
}

func TestQuoteLeavesPointsLinesAlone(t *testing.T) {
	f := newFixture(t)
	reward := f.affiliate(t, catalogdomain.PointsTable{catalogdomain.DefaultLevelKey: {"US": {Regular: 40}}}, nil)

	quoted, err := f.quoter().Quote(context.Background(), f.db, pricingdomain.QuoteRequest{
		OrgID: f.orgID, Country: "US",
		Lines: []pricingdomain.QuoteLine{{Key: 1, AffiliateProductID: reward, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, quoted[0].Price.IsPoints)
	assert.Equal(t, int64(40), quoted[0].Price.Points)

	_, err = f.quoter().Quote(context.Background(), f.db, pricingdomain.QuoteRequest{
		OrgID: f.orgID, Country: "US",
		Lines: []pricingdomain.QuoteLine{{Key: 1, AffiliateProductID: reward, Quantity: 0}},
	})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidInput)
}
