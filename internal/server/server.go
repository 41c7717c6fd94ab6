package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cardlens/creditd/internal/config"
	creditdomain "github.com/cardlens/creditd/internal/credit/domain"
	eligibilitydomain "github.com/cardlens/creditd/internal/eligibility/domain"
	entitlementdomain "github.com/cardlens/creditd/internal/entitlement/domain"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	"github.com/cardlens/creditd/internal/observability"
	obsmiddleware "github.com/cardlens/creditd/internal/observability/logger"
	obsmetrics "github.com/cardlens/creditd/internal/observability/metrics"
	obstracing "github.com/cardlens/creditd/internal/observability/tracing"
	paymentdomain "github.com/cardlens/creditd/internal/payment/domain"
	plandomain "github.com/cardlens/creditd/internal/plan/domain"
	"github.com/cardlens/creditd/internal/ratelimit"
	transferdomain "github.com/cardlens/creditd/internal/transfer/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	creditSvc      creditdomain.Service
	entitlementSvc entitlementdomain.Service
	eligibilitySvc eligibilitydomain.Service
	planSvc        plandomain.Service
	ledgerSvc      ledgerdomain.Service
	paymentSvc     paymentdomain.Service
	transferSvc    transferdomain.Service
	deductLimiter  *ratelimit.DeductLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	CreditSvc      creditdomain.Service
	EntitlementSvc entitlementdomain.Service
	EligibilitySvc eligibilitydomain.Service
	PlanSvc        plandomain.Service
	LedgerSvc      ledgerdomain.Service
	PaymentSvc     paymentdomain.Service
	TransferSvc    transferdomain.Service
	DeductLimiter  *ratelimit.DeductLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		creditSvc:      p.CreditSvc,
		entitlementSvc: p.EntitlementSvc,
		eligibilitySvc: p.EligibilitySvc,
		planSvc:        p.PlanSvc,
		ledgerSvc:      p.LedgerSvc,
		paymentSvc:     p.PaymentSvc,
		transferSvc:    p.TransferSvc,
		deductLimiter:  p.DeductLimiter,
		obsMetrics:     p.ObsMetrics,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")
	{
		v1.GET("/entitlements", s.getEntitlements)

		credits := v1.Group("/credits")
		{
			credits.POST("/check", s.checkCredits)
			credits.POST("/deduct", s.deductCredits)
			credits.POST("/refund", s.refundCredits)
		}

		packages := v1.Group("/packages")
		{
			packages.POST("/validate-change", s.validatePackageChange)
			packages.POST("/purchase", s.purchasePackage)
			packages.POST("/bonus", s.grantBonusCredits)
		}

		v1.POST("/migrate", s.migrateIdentity)

		v1.GET("/plans", s.listPlans)

		ledger := v1.Group("/ledger")
		{
			ledger.GET("/entries", s.listLedgerEntries)
			ledger.GET("/stats", s.ledgerStats)
		}
	}

	s.engine.POST("/webhooks/payments/:provider", s.ingestPaymentWebhook)
}
