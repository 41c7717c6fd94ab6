package contact

import (
	"github.com/cardlens/creditd/internal/contact/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("contact.repository",
	fx.Provide(repository.Provide),
)
