package payment

import (
	"github.com/cardlens/creditd/internal/payment/repository"
	"github.com/cardlens/creditd/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
