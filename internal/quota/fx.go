package quota

import (
	"github.com/cardlens/creditd/internal/quota/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.repository",
	fx.Provide(repository.Provide),
)
