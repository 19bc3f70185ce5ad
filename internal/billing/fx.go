package billing

import (
	"github.com/smallbiznis/tirta/internal/billing/calculator"
	"github.com/smallbiznis/tirta/internal/billing/repository"
	"github.com/smallbiznis/tirta/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(calculator.NewProvider),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
