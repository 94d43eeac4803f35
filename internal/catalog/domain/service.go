package domain

import (
	"context"
	"errors"
)

type ProductView struct {
	Product
	Variations []Variation `json:"variations,omitempty"`
}

// Service is read-only access to the catalog of the organization in context.
type Service interface {
	GetProduct(ctx context.Context, id string) (*ProductView, error)
	GetAffiliateProduct(ctx context.Context, id string) (*AffiliateProduct, error)
	ListLevels(ctx context.Context) ([]AffiliateLevel, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
