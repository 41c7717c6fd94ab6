package ledger

import (
	"github.com/cardlens/creditd/internal/ledger/domain"
	"github.com/cardlens/creditd/internal/ledger/service"
	"github.com/cardlens/creditd/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		repository.ProvideStore[domain.UsageLedgerEntry],
		service.NewService,
	),
)
