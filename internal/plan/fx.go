package plan

import (
	"github.com/cardlens/creditd/internal/plan/repository"
	"github.com/cardlens/creditd/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
