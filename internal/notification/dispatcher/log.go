package dispatcher

import (
	"context"

	"github.com/smallbiznis/tradeway/internal/notification/domain"
	"go.uber.org/zap"
)

// LogDispatcher writes every notification to the structured log.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.Named("notification.log")}
}

func (d *LogDispatcher) Name() string { return "log" }

func (d *LogDispatcher) Dispatch(_ context.Context, n domain.Notification) error {
	channels := make([]string, 0, len(n.Channels))
	for _, c := range n.Channels {
		channels = append(channels, string(c))
	}
	d.log.Info("notification",
		zap.String("id", n.ID),
		zap.String("type", string(n.Type)),
		zap.String("org_id", n.OrgID.String()),
		zap.String("client_id", n.ClientID.String()),
		zap.String("audience", string(n.Audience)),
		zap.Strings("channels", channels),
		zap.Any("data", n.Data),
	)
	return nil
}
