package complaint

import (
	"github.com/smallbiznis/tirta/internal/complaint/repository"
	"github.com/smallbiznis/tirta/internal/complaint/service"
	"go.uber.org/fx"
)

var Module = fx.Module("complaint.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
