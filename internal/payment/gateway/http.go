package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/tradeway/internal/payment/domain"
	"go.uber.org/zap"
)

type gatewayErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpGateway struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPGateway(baseURL, token string, client *http.Client, log *zap.Logger) paymentdomain.Gateway {
	if client == nil {
		client = &http.Client{Timeout: 12 * time.Second}
	}
	return &httpGateway{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  client,
		log:     log.Named("payment.gateway"),
	}
}

func (g *httpGateway) CancelInvoice(ctx context.Context, reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return paymentdomain.ErrInvalidReference
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/invoices/"+url.PathEscape(reference), nil)
	if err != nil {
		return err
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		g.log.Info("pending invoice already gone", zap.String("reference", reference))
		return nil
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var gatewayErr gatewayErrorResponse
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &gatewayErr); err == nil && strings.TrimSpace(gatewayErr.Error.Message) != "" {
		message = strings.TrimSpace(gatewayErr.Error.Message)
	}
	return &paymentdomain.GatewayError{StatusCode: resp.StatusCode, Message: message}
}

type noopGateway struct {
	log *zap.Logger
}

// NewNoopGateway accepts every cancellation. Used when no gateway is configured.
func NewNoopGateway(log *zap.Logger) paymentdomain.Gateway {
	return &noopGateway{log: log.Named("payment.gateway")}
}

func (g *noopGateway) CancelInvoice(ctx context.Context, reference string) error {
	g.log.Debug("payment gateway not configured, skipping cancel", zap.String("reference", reference))
	return nil
}
