package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestContentHashIgnoresOrderAndIDs(t *testing.T) {
	a := Line{ID: 1, ProductID: 10, Quantity: 2, UnitPrice: decimal.RequireFromString("5.00")}
	b := Line{ID: 2, AffiliateProductID: 20, Quantity: 1, PointsPrice: 300}

	first := ContentHash([]Line{a, b})
	a.ID, b.ID = 99, 98
	second := ContentHash([]Line{b, a})
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestContentHashTracksQuantityAndPrice(t *testing.T) {
	line := Line{ProductID: 10, Quantity: 2, UnitPrice: decimal.RequireFromString("5")}
	base := ContentHash([]Line{line})

	same := line
	same.UnitPrice = decimal.RequireFromString("5.0000")
	assert.Equal(t, base, ContentHash([]Line{same}))

	moreQty := line
	moreQty.Quantity = 3
	assert.NotEqual(t, base, ContentHash([]Line{moreQty}))

	cheaper := line
	cheaper.UnitPrice = decimal.RequireFromString("4.99")
	assert.NotEqual(t, base, ContentHash([]Line{cheaper}))

	assert.NotEqual(t, base, ContentHash(nil))
}

func TestTotalsSplitsMoneyAndPoints(t *testing.T) {
	lines := []Line{
		{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("2.50")},
		{AffiliateProductID: 2, Quantity: 2, PointsPrice: 150, UnitPrice: decimal.RequireFromString("9")},
	}
	money, points := Totals(lines)
	assert.True(t, money.Equal(decimal.RequireFromString("7.50")), money.String())
	assert.Equal(t, int64(300), points)
}
