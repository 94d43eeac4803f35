package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Deactivate(ctx context.Context, id string) error
}

type StepRequest struct {
	From  int64           `json:"from"`
	To    int64           `json:"to"`
	Price decimal.Decimal `json:"price"`
}

// CreateRequest accepts "customers" and "clients" as older spellings of
// "targeted_client_ids"; all three are merged.
type CreateRequest struct {
	Name              string        `json:"name"`
	Countries         []string      `json:"countries"`
	ProductIDs        []string      `json:"product_ids"`
	Steps             []StepRequest `json:"steps"`
	TargetedClientIDs []string      `json:"targeted_client_ids"`
	Customers         []string      `json:"customers"`
	Clients           []string      `json:"clients"`
}

type Response struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organization_id"`
	Name              string    `json:"name"`
	Countries         []string  `json:"countries"`
	ProductIDs        []string  `json:"product_ids"`
	Steps             []Step    `json:"steps"`
	TargetedClientIDs []string  `json:"targeted_client_ids"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidCountry      = errors.New("invalid_country")
	ErrInvalidProduct      = errors.New("invalid_product")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidSteps        = errors.New("invalid_steps")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
