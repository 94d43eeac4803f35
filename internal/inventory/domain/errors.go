package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProduct      = errors.New("invalid_product")
	ErrInvalidWarehouse    = errors.New("invalid_warehouse")
	ErrInvalidCountry      = errors.New("invalid_country")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrOutOfStock          = errors.New("out_of_stock")
)

type StockFailure struct {
	ProductID snowflake.ID `json:"product_id"`
	Country   string       `json:"country"`
	Requested int64        `json:"requested"`
	Available int64        `json:"available"`
}

// OutOfStockError lists every item that could not be covered.
type OutOfStockError struct {
	Failures []StockFailure
}

func (e *OutOfStockError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s/%s requested %d available %d", f.ProductID, f.Country, f.Requested, f.Available))
	}
	return "out_of_stock: " + strings.Join(parts, "; ")
}

func (e *OutOfStockError) Is(target error) bool {
	return target == ErrOutOfStock
}
