package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuoterParams struct {
	fx.In

	Log      *zap.Logger
	Resolver pricingdomain.Resolver
	TierRepo tierdomain.Repository
}

type Quoter struct {
	log      *zap.Logger
	resolver pricingdomain.Resolver
	tierRepo tierdomain.Repository
}

func NewQuoter(p QuoterParams) pricingdomain.Quoter {
	return &Quoter{
		log:      p.Log.Named("pricing.quoter"),
		resolver: p.Resolver,
		tierRepo: p.TierRepo,
	}
}

// Quote resolves base prices, then lets the applicable tier rule of each money
// line override the unit price using the quantity summed over every line in
// that rule's product set.
func (q *Quoter) Quote(ctx context.Context, db *gorm.DB, req pricingdomain.QuoteRequest) ([]pricingdomain.QuotedLine, error) {
	if req.OrgID == 0 {
		return nil, pricingdomain.ErrInvalidInput
	}

	rules, err := q.tierRepo.ListActive(ctx, db, req.OrgID)
	if err != nil {
		return nil, err
	}

	out := make([]pricingdomain.QuotedLine, len(req.Lines))
	applied := make([]*tierdomain.Rule, len(req.Lines))
	for i, line := range req.Lines {
		if line.Quantity < 1 {
			return nil, pricingdomain.ErrInvalidInput
		}

		resolve := pricingdomain.ResolveRequest{
			OrgID:   req.OrgID,
			Country: req.Country,
			LevelID: req.LevelID,
		}
		if line.AffiliateProductID != 0 {
			resolve.ItemID = line.AffiliateProductID
		} else {
			resolve.ItemID = line.ProductID
			resolve.VariationID = line.VariationID
		}

		price, err := q.resolver.Resolve(ctx, db, resolve)
		if err != nil {
			return nil, err
		}
		out[i] = pricingdomain.QuotedLine{Key: line.Key, Price: price}
		if price.IsPoints {
			continue
		}

		for _, itemID := range lineItemIDs(line) {
			if rule := tierdomain.ApplicableRule(rules, req.Country, itemID, req.ClientID); rule != nil {
				applied[i] = rule
				break
			}
		}
	}

	totals := make(map[snowflake.ID]int64)
	for _, rule := range applied {
		if rule == nil {
			continue
		}
		if _, ok := totals[rule.ID]; ok {
			continue
		}
		var total int64
		for _, line := range req.Lines {
			if line.AffiliateProductID != 0 {
				continue
			}
			for _, itemID := range lineItemIDs(line) {
				if rule.CoversItem(itemID) {
					total += line.Quantity
					break
				}
			}
		}
		totals[rule.ID] = total
	}

	for i, rule := range applied {
		if rule == nil {
			continue
		}
		if unit, ok := tierdomain.PriceForQuantity(rule.Steps, totals[rule.ID]); ok {
			out[i].Price.UnitPrice = unit
			out[i].RuleID = rule.ID
		}
	}
	return out, nil
}

// lineItemIDs lists the ids a tier rule may name for the line, most specific first.
func lineItemIDs(line pricingdomain.QuoteLine) []snowflake.ID {
	if line.VariationID != 0 {
		return []snowflake.ID{line.VariationID, line.ProductID}
	}
	return []snowflake.ID{line.ProductID}
}
