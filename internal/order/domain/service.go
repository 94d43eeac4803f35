package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	"github.com/smallbiznis/tradeway/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	Commit(ctx context.Context, req CommitRequest) (*CommitResult, error)
	Get(ctx context.Context, id string) (*View, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)

	UpdateTracking(ctx context.Context, id string, req UpdateTrackingRequest) (*View, error)
	ChangePaymentMethod(ctx context.Context, id string, req ChangePaymentMethodRequest) (*View, error)
	UpdateShippingAddress(ctx context.Context, id string, address Address) (*View, error)
	PostMessage(ctx context.Context, id string, req PostMessageRequest) (*View, error)
	AddLine(ctx context.Context, id string, req AddLineRequest) (*View, error)
}

type CommitRequest struct {
	CartID           string  `json:"cart_id"`
	PaymentMethod    string  `json:"payment_method"`
	PaymentReference string  `json:"payment_reference"`
	ShippingCost     string  `json:"shipping_cost"`
	ShippingAddress  Address `json:"shipping_address"`
}

type CommitResult struct {
	Order  *View         `json:"order"`
	FanOut *FanOutReport `json:"fan_out,omitempty"`
}

type View struct {
	Order
	Lines []cartdomain.Line `json:"lines"`
}

type ListRequest struct {
	ClientID string `form:"client_id"`
	pagination.Pagination
}

type ListResponse struct {
	Orders   []Order              `json:"orders"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type UpdateTrackingRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

type ChangePaymentMethodRequest struct {
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
}

type PostMessageRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Author  string `json:"author"`
}

type AddLineRequest struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id"`
	Quantity    int64  `json:"quantity"`
}

// FanOut mirrors committed orders into the upstream organizations that
// supply their products.
type FanOut interface {
	// Enqueue records a pending job for order inside its commit transaction.
	// It reports false when no line has an upstream supplier.
	Enqueue(ctx context.Context, db *gorm.DB, order *Order, lines []cartdomain.Line) (bool, error)
	// Run walks the mapping graph from the root order and marks the job.
	Run(ctx context.Context, rootOrderID snowflake.ID) (*FanOutReport, error)
}

type FanOutReport struct {
	JobID  snowflake.ID `json:"job_id"`
	Status string       `json:"status"`
	Orders []ChildOrder `json:"orders"`
	Error  string       `json:"error,omitempty"`
}

type ChildOrder struct {
	OrderID        snowflake.ID    `json:"order_id"`
	OrgID          snowflake.ID    `json:"organization_id"`
	ParentOrderID  snowflake.ID    `json:"parent_order_id"`
	SequenceNumber int64           `json:"sequence_number"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Depth          int             `json:"depth"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCart         = errors.New("invalid_cart")
	ErrEmptyCart           = errors.New("empty_cart")
	ErrInvalidShippingCost = errors.New("invalid_shipping_cost")
	ErrInvalidAddress      = errors.New("invalid_shipping_address")
	ErrInvalidPayment      = errors.New("invalid_payment_method")
	ErrInvalidTracking     = errors.New("invalid_tracking_number")
	ErrInvalidMessage      = errors.New("invalid_message")
	ErrInvalidItem         = errors.New("invalid_item")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrCartNotFound        = errors.New("cart_not_found")
	ErrCartNotOwned        = errors.New("cart_not_owned")
	ErrCartClosed          = errors.New("cart_closed")
	ErrNotFound            = errors.New("order_not_found")
	ErrSequenceConflict    = errors.New("order_sequence_conflict")
	ErrPaymentChanged      = errors.New("order_payment_changed")
)
