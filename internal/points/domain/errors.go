package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
)

type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient_balance: required %d available %d", e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
