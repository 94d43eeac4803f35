package tierpricing

import (
	"github.com/smallbiznis/tradeway/internal/tierpricing/repository"
	"github.com/smallbiznis/tradeway/internal/tierpricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tierpricing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
