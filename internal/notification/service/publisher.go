package service

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/notification/domain"
	"go.uber.org/zap"
)

type Publisher struct {
	log         *zap.Logger
	clock       clock.Clock
	dispatchers []domain.Dispatcher
}

func NewPublisher(log *zap.Logger, clk clock.Clock, dispatchers ...domain.Dispatcher) *Publisher {
	return &Publisher{
		log:         log.Named("notification.publisher"),
		clock:       clk,
		dispatchers: dispatchers,
	}
}

// Publish stamps an id when missing and runs every dispatcher in turn.
func (p *Publisher) Publish(ctx context.Context, n domain.Notification) {
	if n.ID == "" {
		n.ID = ulid.Make().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = p.clock.Now()
	}
	if n.Audience == "" {
		n.Audience = domain.AudienceClient
	}

	for _, d := range p.dispatchers {
		if err := d.Dispatch(ctx, n); err != nil {
			p.log.Warn("notification dispatch failed",
				zap.String("dispatcher", d.Name()),
				zap.String("id", n.ID),
				zap.String("type", string(n.Type)),
				zap.String("org_id", n.OrgID.String()),
				zap.Error(err),
			)
		}
	}
}
