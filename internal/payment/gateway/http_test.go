package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	paymentdomain "github.com/smallbiznis/tradeway/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCancelInvoiceTreatsNotFoundAsSuccess(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth, gotMethod = r.URL.Path, r.Header.Get("Authorization"), r.Method
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL+"/", "secret", srv.Client(), zap.NewNop())
	require.NoError(t, gw.CancelInvoice(context.Background(), "inv_123"))
	assert.Equal(t, "/invoices/inv_123", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestCancelInvoiceSurfacesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"message":"invoice already paid"}}`))
	}))
	defer srv.Close()

	err := NewHTTPGateway(srv.URL, "", srv.Client(), zap.NewNop()).CancelInvoice(context.Background(), "inv_1")
	require.ErrorIs(t, err, paymentdomain.ErrGatewayRejected)

	var gwErr *paymentdomain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusConflict, gwErr.StatusCode)
	assert.Equal(t, "invoice already paid", gwErr.Message)
}

func TestCancelInvoiceAcceptsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "", srv.Client(), zap.NewNop())
	assert.NoError(t, gw.CancelInvoice(context.Background(), "inv_1"))
	assert.ErrorIs(t, gw.CancelInvoice(context.Background(), "  "), paymentdomain.ErrInvalidReference)
}

func TestCancelInvoiceRejectsUnfollowedRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultipleChoices)
	}))
	defer srv.Close()

	err := NewHTTPGateway(srv.URL, "", srv.Client(), zap.NewNop()).CancelInvoice(context.Background(), "inv_1")
	require.ErrorIs(t, err, paymentdomain.ErrGatewayRejected)

	var gwErr *paymentdomain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusMultipleChoices, gwErr.StatusCode)
}
