package entitlement

import (
	"github.com/cardlens/creditd/internal/entitlement/repository"
	"github.com/cardlens/creditd/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
