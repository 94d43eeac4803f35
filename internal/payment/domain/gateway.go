package domain

import (
	"context"
	"errors"
	"fmt"
)

// Gateway is the external payment service holding pending invoices.
type Gateway interface {
	// CancelInvoice voids the pending invoice behind reference. An invoice the
	// gateway no longer knows counts as cancelled.
	CancelInvoice(ctx context.Context, reference string) error
}

var (
	ErrInvalidReference = errors.New("invalid_payment_reference")
	ErrGatewayRejected  = errors.New("payment_gateway_rejected")
)

// GatewayError carries the status and message of a failed gateway call.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway returned %d: %s", e.StatusCode, e.Message)
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayRejected
}
