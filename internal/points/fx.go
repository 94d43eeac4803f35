package points

import (
	"github.com/smallbiznis/tradeway/internal/points/repository"
	"github.com/smallbiznis/tradeway/internal/points/service"
	"go.uber.org/fx"
)

var Module = fx.Module("points.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewLedger),
)
