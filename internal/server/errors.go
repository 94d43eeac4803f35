package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	fanoutdomain "github.com/smallbiznis/tradeway/internal/fanout/domain"
	inventorydomain "github.com/smallbiznis/tradeway/internal/inventory/domain"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	paymentdomain "github.com/smallbiznis/tradeway/internal/payment/domain"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	"gorm.io/gorm"
)

const (
	kindInvalidInput        = "invalid_input"
	kindNotFound            = "not_found"
	kindPermissionDenied    = "permission_denied"
	kindInsufficientBalance = "insufficient_balance"
	kindOutOfStock          = "out_of_stock"
	kindConflict            = "conflict"
	kindUnauthorized        = "unauthorized"
	kindRateLimited         = "rate_limited"
	kindUnavailable         = "service_unavailable"
	kindInternal            = "internal"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrInvalidRequest     = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func classifyErrorForLog(err error) string {
	_, payload := mapError(err)
	return payload.Type
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{Type: kindInternal, Message: "internal server error"}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    kindInvalidInput,
			Message: "validation error",
			Details: vErr.Errors,
		}
	}

	var stockErr *inventorydomain.OutOfStockError
	if errors.As(err, &stockErr) {
		return http.StatusConflict, errorPayload{
			Type:    kindOutOfStock,
			Message: "insufficient stock",
			Details: gin.H{"failures": stockErr.Failures},
		}
	}

	var balanceErr *pointsdomain.InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		return http.StatusConflict, errorPayload{
			Type:    kindInsufficientBalance,
			Message: "insufficient points balance",
			Details: gin.H{"required": balanceErr.Required, "available": balanceErr.Available},
		}
	}

	switch {
	case isInvalidInput(err):
		return http.StatusBadRequest, errorPayload{Type: kindInvalidInput, Message: err.Error()}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: kindUnauthorized, Message: "organization identity required"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, pricingdomain.ErrLevelTooLow),
		errors.Is(err, cartdomain.ErrNotOwner),
		errors.Is(err, orderdomain.ErrCartNotOwned):
		return http.StatusForbidden, errorPayload{Type: kindPermissionDenied, Message: err.Error()}
	case isNotFound(err):
		return http.StatusNotFound, errorPayload{Type: kindNotFound, Message: err.Error()}
	case errors.Is(err, pointsdomain.ErrInsufficientBalance):
		return http.StatusConflict, errorPayload{Type: kindInsufficientBalance, Message: "insufficient points balance"}
	case errors.Is(err, inventorydomain.ErrOutOfStock):
		return http.StatusConflict, errorPayload{Type: kindOutOfStock, Message: "insufficient stock"}
	case errors.Is(err, clientdomain.ErrAlreadyExists),
		errors.Is(err, orderdomain.ErrPaymentChanged),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, errorPayload{Type: kindConflict, Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: kindRateLimited, Message: "too many requests"}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrGatewayRejected):
		return http.StatusServiceUnavailable, errorPayload{Type: kindUnavailable, Message: "service unavailable"}
	case errors.Is(err, fanoutdomain.ErrDepthExceeded),
		errors.Is(err, orderdomain.ErrSequenceConflict):
		return http.StatusInternalServerError, errorPayload{Type: kindInternal, Message: "internal server error"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: kindInternal, Message: "internal server error"}
	}
}

func isInvalidInput(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pricingdomain.ErrInvalidInput),
		errors.Is(err, pricingdomain.ErrVariationMissing),
		errors.Is(err, paymentdomain.ErrInvalidReference):
		return true
	case isCatalogValidationError(err),
		isTierValidationError(err),
		isInventoryValidationError(err),
		isClientValidationError(err),
		isPointsValidationError(err),
		isCartValidationError(err),
		isOrderValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFound(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, tierdomain.ErrNotFound),
		errors.Is(err, pricingdomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, pointsdomain.ErrNotFound),
		errors.Is(err, cartdomain.ErrNotFound),
		errors.Is(err, cartdomain.ErrLineNotFound),
		errors.Is(err, orderdomain.ErrCartNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isAnyOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
