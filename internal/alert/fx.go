package alert

import (
	"github.com/smallbiznis/tirta/internal/alert/repository"
	"github.com/smallbiznis/tirta/internal/alert/rules"
	"github.com/smallbiznis/tirta/internal/alert/service"
	"github.com/smallbiznis/tirta/internal/consumption"
	"go.uber.org/fx"
)

var Module = fx.Module("alert.service",
	fx.Provide(repository.Provide),
	fx.Provide(consumption.ProvideAnalyzer),
	fx.Provide(rules.NewEngine),
	fx.Provide(service.New),
)
