package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	"gorm.io/gorm"
)

// RepriceMoneyLines quotes every money line of the cart together and stores
// the unit prices that changed. Points lines keep the price they were
// redeemed at. lines is updated in place.
func RepriceMoneyLines(
	ctx context.Context,
	tx *gorm.DB,
	quoter pricingdomain.Quoter,
	repo cartdomain.Repository,
	cart *cartdomain.Cart,
	levelID snowflake.ID,
	lines []cartdomain.Line,
) error {
	quote := pricingdomain.QuoteRequest{
		OrgID:    cart.OrgID,
		ClientID: cart.ClientID,
		LevelID:  levelID,
		Country:  cart.Country,
	}
	index := make(map[snowflake.ID]int, len(lines))
	for i := range lines {
		if lines[i].IsPoints() {
			continue
		}
		index[lines[i].ID] = i
		quote.Lines = append(quote.Lines, pricingdomain.QuoteLine{
			Key:         lines[i].ID,
			ProductID:   lines[i].ProductID,
			VariationID: lines[i].VariationID,
			Quantity:    lines[i].Quantity,
		})
	}
	if len(quote.Lines) == 0 {
		return nil
	}

	quoted, err := quoter.Quote(ctx, tx, quote)
	if err != nil {
		return err
	}
	for _, q := range quoted {
		line := &lines[index[q.Key]]
		if line.UnitPrice.Equal(q.Price.UnitPrice) {
			continue
		}
		if err := repo.UpdateLinePrice(ctx, tx, line.ID, q.Price.UnitPrice, 0); err != nil {
			return err
		}
		line.UnitPrice = q.Price.UnitPrice
	}
	return nil
}
