package reading

import (
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"github.com/smallbiznis/tirta/internal/reading/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("reading.repository",
	fx.Provide(repository.Provide),
	fx.Provide(func() readingdomain.Validator { return readingdomain.DefaultValidator{} }),
)
