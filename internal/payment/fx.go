package payment

import (
	"strings"

	"github.com/smallbiznis/tradeway/internal/config"
	paymentdomain "github.com/smallbiznis/tradeway/internal/payment/domain"
	"github.com/smallbiznis/tradeway/internal/payment/gateway"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.gateway",
	fx.Provide(NewGateway),
)

func NewGateway(cfg config.Config, log *zap.Logger) paymentdomain.Gateway {
	if strings.TrimSpace(cfg.PaymentGatewayURL) == "" {
		return gateway.NewNoopGateway(log)
	}
	return gateway.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentGatewayToken, nil, log)
}
