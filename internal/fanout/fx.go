package fanout

import (
	"context"

	"github.com/smallbiznis/tradeway/internal/fanout/repository"
	"github.com/smallbiznis/tradeway/internal/fanout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fanout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewFanOut),
	fx.Provide(service.NewWorker),
	fx.Invoke(StartWorker),
)

func StartWorker(lc fx.Lifecycle, worker *service.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
