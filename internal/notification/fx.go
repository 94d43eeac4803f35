package notification

import (
	"strings"

	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/config"
	"github.com/smallbiznis/tradeway/internal/notification/dispatcher"
	"github.com/smallbiznis/tradeway/internal/notification/domain"
	"github.com/smallbiznis/tradeway/internal/notification/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewPublisher),
)

// NewPublisher always logs notifications and mails them when SMTP is configured.
func NewPublisher(cfg config.Config, log *zap.Logger, clk clock.Clock) domain.Publisher {
	dispatchers := []domain.Dispatcher{dispatcher.NewLogDispatcher(log)}
	if host := strings.TrimSpace(cfg.Email.SMTPHost); host != "" {
		dispatchers = append(dispatchers, dispatcher.NewEmailDispatcher(dispatcher.EmailConfig{
			Host:     host,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		}, nil))
	}
	return service.NewPublisher(log, clk, dispatchers...)
}
