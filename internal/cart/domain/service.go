package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type Service interface {
	Open(ctx context.Context, req OpenRequest) (*View, error)
	Get(ctx context.Context, id string) (*View, error)
	AddLine(ctx context.Context, cartID string, req AddLineRequest) (*View, error)
	SetQuantity(ctx context.Context, cartID, lineID string, quantity int64) (*View, error)
	RemoveLine(ctx context.Context, cartID, lineID string) (*View, error)
}

type OpenRequest struct {
	Country string `json:"country"`
}

type AddLineRequest struct {
	ProductID          string `json:"product_id"`
	VariationID        string `json:"variation_id"`
	AffiliateProductID string `json:"affiliate_product_id"`
	Quantity           int64  `json:"quantity"`
}

type View struct {
	Cart
	Lines       []Line          `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	PointsTotal int64           `json:"points_total"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidCountry      = errors.New("invalid_country")
	ErrInvalidItem         = errors.New("invalid_item")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("cart_not_found")
	ErrLineNotFound        = errors.New("cart_line_not_found")
	ErrNotOwner            = errors.New("cart_not_owned")
	ErrClosed              = errors.New("cart_closed")
)
