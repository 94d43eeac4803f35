package server

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceQueryResolveRequest(t *testing.T) {
	req, err := priceQuery{Country: " us ", VariationID: "42"}.resolveRequest("7")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(7), req.ItemID)
	assert.Equal(t, snowflake.ID(42), req.VariationID)
	assert.Equal(t, "US", req.Country)

	req, err = priceQuery{Country: "DE"}.resolveRequest("7")
	require.NoError(t, err)
	assert.Zero(t, req.VariationID)
}

func TestPriceQueryRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		query priceQuery
		id    string
		field string
	}{
		{"bad id", priceQuery{Country: "US"}, "abc", "id"},
		{"zero id", priceQuery{Country: "US"}, "0", "id"},
		{"bad variation", priceQuery{Country: "US", VariationID: "x"}, "7", "variation_id"},
		{"missing country", priceQuery{Country: "  "}, "7", "country"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.query.resolveRequest(tc.id)
			var verr *ValidationErrors
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Errors, 1)
			assert.Equal(t, tc.field, verr.Errors[0].Field)
		})
	}
}
