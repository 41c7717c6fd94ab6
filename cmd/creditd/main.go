package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/cache"
	"github.com/cardlens/creditd/internal/clock"
	"github.com/cardlens/creditd/internal/config"
	"github.com/cardlens/creditd/internal/contact"
	"github.com/cardlens/creditd/internal/credit"
	"github.com/cardlens/creditd/internal/eligibility"
	"github.com/cardlens/creditd/internal/entitlement"
	"github.com/cardlens/creditd/internal/ledger"
	"github.com/cardlens/creditd/internal/migration"
	"github.com/cardlens/creditd/internal/observability"
	"github.com/cardlens/creditd/internal/payment"
	"github.com/cardlens/creditd/internal/plan"
	"github.com/cardlens/creditd/internal/quota"
	"github.com/cardlens/creditd/internal/ratelimit"
	"github.com/cardlens/creditd/internal/server"
	"github.com/cardlens/creditd/internal/transfer"
	"github.com/cardlens/creditd/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,

		plan.Module,
		quota.Module,
		entitlement.Module,
		ledger.Module,
		credit.Module,
		eligibility.Module,
		payment.Module,
		contact.Module,
		transfer.Module,
		ratelimit.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
