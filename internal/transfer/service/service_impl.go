package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/clock"
	contactdomain "github.com/cardlens/creditd/internal/contact/domain"
	"github.com/cardlens/creditd/internal/identity"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	"github.com/cardlens/creditd/internal/observability/metrics"
	quotadomain "github.com/cardlens/creditd/internal/quota/domain"
	"github.com/cardlens/creditd/internal/transfer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Node      *snowflake.Node
	QuotaRepo quotadomain.Repository
	Contacts  contactdomain.Repository
	Ledger    ledgerdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	node      *snowflake.Node
	quotaRepo quotadomain.Repository
	contacts  contactdomain.Repository
	ledger    ledgerdomain.Service
	metrics   *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("transfer.service"),
		clock:     p.Clock,
		node:      p.Node,
		quotaRepo: p.QuotaRepo,
		contacts:  p.Contacts,
		ledger:    p.Ledger,
		metrics:   p.Metrics,
	}
}

func (s *Service) MigrateAnonymousToUser(ctx context.Context, req domain.MigrateRequest) (*domain.MigrationResult, error) {
	uid, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, domain.ErrInvalidUser
	}
	anon, err := identity.Resolve(nil, req.IPAddress, req.Fingerprint)
	if err != nil {
		return nil, domain.ErrInvalidIdentity
	}
	user := identity.AccountingIdentity{UserID: &uid}

	now := s.clock.Now()

	var result domain.MigrationResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		anonRow, err := s.quotaRepo.FindByAnonymous(ctx, tx, anon.IPAddress, anon.Fingerprint)
		if err != nil {
			return err
		}

		if anonRow != nil {
			userRow, err := s.quotaRepo.FindByUser(ctx, tx, uid)
			if err != nil {
				return err
			}
			result.CreditsUsedCarried = anonRow.CreditsUsed

			if userRow != nil {
				// fold consumption into the user's existing window so
				// signup cannot mint a fresh free allowance
				if err := s.quotaRepo.MergeUsage(ctx, tx, userRow.ID, anonRow.CreditsUsed, now); err != nil {
					return err
				}
				if err := s.quotaRepo.DeleteByID(ctx, tx, anonRow.ID); err != nil {
					return err
				}
				result.QuotaMerged = true
			} else {
				if err := s.quotaRepo.AssignToUser(ctx, tx, anonRow.ID, uid, now); err != nil {
					return err
				}
			}
		}

		moved, err := s.ledger.ReassignIdentity(ctx, tx, anon.Key(), uid, user.Key())
		if err != nil {
			return err
		}
		result.LedgerEntriesMoved = moved

		if sessionID := strings.TrimSpace(req.SessionID); sessionID != "" {
			contactsMoved, err := s.contacts.ReassignToUser(ctx, tx, sessionID, uid, now)
			if err != nil {
				return err
			}
			result.ContactsMoved = contactsMoved
		}

		if anonRow == nil && result.LedgerEntriesMoved == 0 && result.ContactsMoved == 0 {
			result.AlreadyMigrated = true
			return nil
		}

		entry := &ledgerdomain.UsageLedgerEntry{
			ID:            s.node.Generate(),
			IdentityKey:   user.Key(),
			UserID:        &uid,
			OperationType: ledgerdomain.OperationMigration,
			Details: datatypes.JSONMap{
				"from":                 anon.Key(),
				"credits_used_carried": result.CreditsUsedCarried,
				"ledger_entries_moved": result.LedgerEntriesMoved,
				"contacts_moved":       result.ContactsMoved,
			},
			CreatedAt: now,
		}
		return s.ledger.Record(ctx, tx, entry)
	})
	if err != nil {
		s.metrics.RecordMigration(ctx, "error")
		return nil, err
	}

	outcome := "ok"
	if result.AlreadyMigrated {
		outcome = "noop"
	}
	s.metrics.RecordMigration(ctx, outcome)
	s.log.Info("anonymous identity migrated",
		zap.String("from", anon.Key()),
		zap.String("to", user.Key()),
		zap.Bool("merged", result.QuotaMerged),
		zap.Bool("noop", result.AlreadyMigrated),
	)
	return &result, nil
}
