package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
)

// priceQuery is the query string of the price quote endpoint.
type priceQuery struct {
	Country     string `form:"country"`
	VariationID string `form:"variation_id"`
}

// resolveRequest validates the query for itemID. The organization and level
// are filled in by the caller.
func (q priceQuery) resolveRequest(itemID string) (pricingdomain.ResolveRequest, error) {
	var req pricingdomain.ResolveRequest

	id, ok := parseSnowflake(itemID)
	if !ok {
		return req, newValidationError("id", "invalid_id", "invalid id")
	}
	req.ItemID = id

	if v := strings.TrimSpace(q.VariationID); v != "" {
		variationID, ok := parseSnowflake(v)
		if !ok {
			return req, newValidationError("variation_id", "invalid_variation_id", "invalid variation_id")
		}
		req.VariationID = variationID
	}

	req.Country = strings.ToUpper(strings.TrimSpace(q.Country))
	if req.Country == "" {
		return req, newValidationError("country", "invalid_country", "country is required")
	}
	return req, nil
}

func parseSnowflake(value string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
