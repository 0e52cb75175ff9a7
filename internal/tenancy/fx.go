package tenancy

import (
	"github.com/smallbiznis/rentbook/internal/tenancy/repository"
	"github.com/smallbiznis/rentbook/internal/tenancy/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenancy.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
