package client

import (
	"github.com/smallbiznis/tradeway/internal/client/repository"
	"github.com/smallbiznis/tradeway/internal/client/service"
	"go.uber.org/fx"
)

var Module = fx.Module("client.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewService),
	fx.Provide(service.NewDirectory),
)
