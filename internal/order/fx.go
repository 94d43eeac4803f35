package order

import (
	"github.com/smallbiznis/tradeway/internal/order/repository"
	"github.com/smallbiznis/tradeway/internal/order/sequence"
	"github.com/smallbiznis/tradeway/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(sequence.New),
	fx.Provide(service.New),
)
