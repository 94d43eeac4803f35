package pricing

import (
	"github.com/smallbiznis/tradeway/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewQuoter),
)
