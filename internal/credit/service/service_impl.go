package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/clock"
	"github.com/cardlens/creditd/internal/config"
	"github.com/cardlens/creditd/internal/credit/domain"
	entitlementdomain "github.com/cardlens/creditd/internal/entitlement/domain"
	"github.com/cardlens/creditd/internal/identity"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	"github.com/cardlens/creditd/internal/observability/metrics"
	plandomain "github.com/cardlens/creditd/internal/plan/domain"
	quotadomain "github.com/cardlens/creditd/internal/quota/domain"
	pkgdb "github.com/cardlens/creditd/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// deductAttempts bounds the read-decide-write cycle when a guarded
// update loses to a concurrent writer.
const deductAttempts = 2

var errRetry = errors.New("retry")

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Node         *snowflake.Node
	QuotaRepo    quotadomain.Repository
	Entitlements entitlementdomain.Repository
	Plans        plandomain.Service
	Ledger       ledgerdomain.Service
	Metrics      *metrics.Metrics           `optional:"true"`
	Limits       *config.LimitsConfigHolder `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	node         *snowflake.Node
	quotaRepo    quotadomain.Repository
	entitlements entitlementdomain.Repository
	plans        plandomain.Service
	ledger       ledgerdomain.Service
	metrics      *metrics.Metrics
	limits       *config.LimitsConfigHolder
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("credit.service"),
		clock:        p.Clock,
		node:         p.Node,
		quotaRepo:    p.QuotaRepo,
		entitlements: p.Entitlements,
		plans:        p.Plans,
		ledger:       p.Ledger,
		metrics:      p.Metrics,
		limits:       p.Limits,
	}
}

// freeProfile resolves the daily limit and reset interval governing an
// identity's free pool. Holders of an active package inherit their
// plan's free allowance when the plan defines one; fingerprint-less
// anonymous callers get the tighter low-trust profile.
func (s *Service) freeProfile(ctx context.Context, id identity.AccountingIdentity, pkg *entitlementdomain.PackageEntitlement) (dailyLimit, resetHours int, err error) {
	if id.LowTrust() {
		profile := config.DefaultLimitsConfig().LowTrust
		if s.limits != nil {
			profile = s.limits.Get().LowTrust
		}
		return profile.DailyLimit, profile.ResetIntervalHours, nil
	}

	if pkg != nil {
		plan, err := s.plans.Get(ctx, pkg.PlanID.String())
		if err == nil && plan.DailyLimit > 0 {
			return plan.DailyLimit, plan.ResetIntervalHours, nil
		}
		if err != nil && !errors.Is(err, plandomain.ErrPlanNotFound) {
			return 0, 0, err
		}
	}

	plan, err := s.plans.DefaultFreePlan(ctx)
	if err != nil {
		return 0, 0, err
	}
	return plan.DailyLimit, plan.ResetIntervalHours, nil
}

// loadFreeRow fetches the identity's usage row, granting it on first
// sight and applying any due lazy reset.
func (s *Service) loadFreeRow(ctx context.Context, tx *gorm.DB, id identity.AccountingIdentity, resetHours int, now time.Time) (*quotadomain.FreeQuotaUsage, error) {
	find := func() (*quotadomain.FreeQuotaUsage, error) {
		if !id.Anonymous() {
			return s.quotaRepo.FindByUser(ctx, tx, *id.UserID)
		}
		return s.quotaRepo.FindByAnonymous(ctx, tx, id.IPAddress, id.Fingerprint)
	}

	row, err := find()
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &quotadomain.FreeQuotaUsage{
			ID:                 s.node.Generate(),
			LastReset:          now,
			ResetIntervalHours: resetHours,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if !id.Anonymous() {
			row.UserID = id.UserID
		} else {
			ip, fp := id.IPAddress, id.Fingerprint
			row.IPAddress = &ip
			row.Fingerprint = &fp
		}
		if err := s.quotaRepo.Insert(ctx, tx, row); err != nil {
			if !pkgdb.IsDuplicateKeyErr(err) {
				return nil, err
			}
			// another request granted the row first
			if row, err = find(); err != nil {
				return nil, err
			}
			if row == nil {
				return nil, errRetry
			}
		}
	}

	for attempt := 0; row.ResetDue(now) && attempt < deductAttempts; attempt++ {
		won, err := s.quotaRepo.ResetIfDue(ctx, tx, row.ID, row.LastReset, now)
		if err != nil {
			return nil, err
		}
		if won {
			row.CreditsUsed = 0
			row.LastReset = now
			s.metrics.RecordQuotaReset(ctx)
			break
		}
		if row, err = find(); err != nil {
			return nil, err
		}
		if row == nil {
			return nil, errRetry
		}
	}

	return row, nil
}

func (s *Service) activePackage(ctx context.Context, tx *gorm.DB, id identity.AccountingIdentity) (*entitlementdomain.PackageEntitlement, error) {
	if id.Anonymous() {
		return nil, nil
	}
	return s.entitlements.FindActiveByUser(ctx, tx, *id.UserID)
}

func freeView(row *quotadomain.FreeQuotaUsage, dailyLimit int) domain.FreeQuotaView {
	remaining := dailyLimit - row.CreditsUsed
	if remaining < 0 {
		remaining = 0
	}
	interval := row.ResetIntervalHours
	if interval <= 0 {
		interval = 24
	}
	return domain.FreeQuotaView{
		DailyLimit:       dailyLimit,
		CreditsUsed:      row.CreditsUsed,
		CreditsRemaining: remaining,
		ResetsAt:         row.LastReset.Add(time.Duration(interval) * time.Hour),
	}
}

func packageView(pkg *entitlementdomain.PackageEntitlement) *domain.PackageQuotaView {
	if pkg == nil {
		return nil
	}
	return &domain.PackageQuotaView{
		PackageID:        pkg.ID,
		PlanID:           pkg.PlanID,
		CreditsRemaining: pkg.CreditsRemaining,
		CreditsUsed:      pkg.CreditsUsed,
		ExpiresAt:        pkg.ExpiresAt,
	}
}

func (s *Service) GetFreeQuota(ctx context.Context, id identity.AccountingIdentity) (*domain.FreeQuotaView, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return &snap.Free, nil
}

func (s *Service) GetPackageQuota(ctx context.Context, id identity.AccountingIdentity) (*domain.PackageQuotaView, error) {
	pkg, err := s.activePackage(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return packageView(pkg), nil
}

func (s *Service) Snapshot(ctx context.Context, id identity.AccountingIdentity) (*domain.Snapshot, error) {
	now := s.clock.Now()

	pkg, err := s.activePackage(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	dailyLimit, resetHours, err := s.freeProfile(ctx, id, pkg)
	if err != nil {
		return nil, err
	}
	row, err := s.loadFreeRow(ctx, s.db, id, resetHours, now)
	if err != nil {
		if errors.Is(err, errRetry) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}

	free := freeView(row, dailyLimit)
	pkgView := packageView(pkg)

	total := free.CreditsRemaining
	if pkgView != nil {
		total += pkgView.CreditsRemaining
	}
	return &domain.Snapshot{
		IdentityKey:    id.Key(),
		Free:           free,
		Package:        pkgView,
		TotalRemaining: total,
	}, nil
}

func (s *Service) CanSpend(ctx context.Context, id identity.AccountingIdentity, credits int) (bool, *domain.Snapshot, error) {
	if credits <= 0 {
		return false, nil, domain.ErrInvalidAmount
	}
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		// A broken store must never answer yes. Deny and let the
		// caller retry once the store recovers.
		s.log.Warn("quota read failed, denying spend check",
			zap.String("identity", id.Key()),
			zap.Error(err),
		)
		return false, nil, nil
	}
	return snap.TotalRemaining >= credits, snap, nil
}

func (s *Service) Deduct(ctx context.Context, req domain.DeductRequest) (*domain.DeductResult, error) {
	if req.Credits <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	op := req.OperationType
	if op == "" {
		op = ledgerdomain.OperationDeduct
	}
	if !op.Spend() {
		return nil, domain.ErrInvalidOperationType
	}

	if req.IdempotencyKey != nil {
		prior, err := s.ledger.FindByIdempotencyKey(ctx, s.db, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			return &domain.DeductResult{
				FreeConsumed:    prior.FreeCreditsConsumed,
				PackageConsumed: prior.PackageCreditsConsumed,
				LedgerEntryID:   prior.ID,
				AlreadyApplied:  true,
			}, nil
		}
	}

	now := s.clock.Now()

	var result *domain.DeductResult
	for attempt := 0; attempt < deductAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			pkg, err := s.activePackage(ctx, tx, req.Identity)
			if err != nil {
				return err
			}
			dailyLimit, resetHours, err := s.freeProfile(ctx, req.Identity, pkg)
			if err != nil {
				return err
			}
			row, err := s.loadFreeRow(ctx, tx, req.Identity, resetHours, now)
			if err != nil {
				return err
			}

			freeAvailable := dailyLimit - row.CreditsUsed
			if freeAvailable < 0 {
				freeAvailable = 0
			}
			packageAvailable := 0
			if pkg != nil {
				packageAvailable = pkg.CreditsRemaining
			}

			if freeAvailable+packageAvailable < req.Credits {
				return &domain.InsufficientCreditsError{
					Needed:           req.Credits,
					FreeAvailable:    freeAvailable,
					PackageAvailable: packageAvailable,
				}
			}

			fromFree := req.Credits
			if fromFree > freeAvailable {
				fromFree = freeAvailable
			}
			fromPackage := req.Credits - fromFree

			if fromFree > 0 {
				ok, err := s.quotaRepo.Deduct(ctx, tx, row.ID, fromFree, dailyLimit, now)
				if err != nil {
					return err
				}
				if !ok {
					return errRetry
				}
			}
			if fromPackage > 0 {
				ok, err := s.entitlements.Deduct(ctx, tx, pkg.ID, fromPackage, now)
				if err != nil {
					return err
				}
				if !ok {
					return errRetry
				}
			}

			entry := s.newLedgerEntry(req.Identity, op, now)
			entry.CreditsConsumed = req.Credits
			entry.FreeCreditsConsumed = fromFree
			entry.PackageCreditsConsumed = fromPackage
			entry.IdempotencyKey = req.IdempotencyKey
			entry.Details = datatypes.JSONMap(req.Details)
			if pkg != nil && fromPackage > 0 {
				entry.PackageID = &pkg.ID
			}
			if err := s.ledger.Record(ctx, tx, entry); err != nil {
				return err
			}

			row.CreditsUsed += fromFree
			if pkg != nil {
				pkg.CreditsRemaining -= fromPackage
				pkg.CreditsUsed += fromPackage
			}
			free := freeView(row, dailyLimit)
			pkgView := packageView(pkg)
			total := free.CreditsRemaining
			if pkgView != nil {
				total += pkgView.CreditsRemaining
			}
			result = &domain.DeductResult{
				FreeConsumed:    fromFree,
				PackageConsumed: fromPackage,
				LedgerEntryID:   entry.ID,
				Snapshot: &domain.Snapshot{
					IdentityKey:    req.Identity.Key(),
					Free:           free,
					Package:        pkgView,
					TotalRemaining: total,
				},
			}
			return nil
		})
		if err == nil {
			s.metrics.RecordDeduct(ctx, "ok", int64(result.FreeConsumed), int64(result.PackageConsumed))
			return result, nil
		}
		if errors.Is(err, errRetry) {
			continue
		}

		var insufficient *domain.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			s.metrics.RecordDeduct(ctx, "insufficient", 0, 0)
			return nil, insufficient
		}
		if errors.Is(err, ledgerdomain.ErrDuplicateEntry) && req.IdempotencyKey != nil {
			// a concurrent retry with the same key committed first
			prior, ferr := s.ledger.FindByIdempotencyKey(ctx, s.db, *req.IdempotencyKey)
			if ferr != nil {
				return nil, ferr
			}
			if prior != nil {
				return &domain.DeductResult{
					FreeConsumed:    prior.FreeCreditsConsumed,
					PackageConsumed: prior.PackageCreditsConsumed,
					LedgerEntryID:   prior.ID,
					AlreadyApplied:  true,
				}, nil
			}
		}
		s.metrics.RecordDeduct(ctx, "error", 0, 0)
		return nil, err
	}

	s.metrics.RecordDeduct(ctx, "conflict", 0, 0)
	s.log.Warn("deduct exhausted retries", zap.String("identity", req.Identity.Key()), zap.Int("credits", req.Credits))
	return nil, domain.ErrConflict
}

func (s *Service) Refund(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	if req.Credits <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.IdempotencyKey == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}
	if req.OperationType != "" && !req.OperationType.Spend() {
		return nil, domain.ErrInvalidOperationType
	}

	prior, err := s.ledger.FindByIdempotencyKey(ctx, s.db, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return &domain.RefundResult{
			FreeReturned:    prior.FreeCreditsConsumed,
			PackageReturned: prior.PackageCreditsConsumed,
			LedgerEntryID:   prior.ID,
			AlreadyApplied:  true,
		}, nil
	}

	now := s.clock.Now()

	var result *domain.RefundResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pkg, err := s.activePackage(ctx, tx, req.Identity)
		if err != nil {
			return err
		}

		toPackage := 0
		if pkg != nil {
			toPackage = req.Credits
			if toPackage > pkg.CreditsUsed {
				toPackage = pkg.CreditsUsed
			}
		}
		toFree := req.Credits - toPackage

		if toPackage > 0 {
			if err := s.entitlements.Refund(ctx, tx, pkg.ID, toPackage, now); err != nil {
				return err
			}
		}
		if toFree > 0 {
			_, resetHours, err := s.freeProfile(ctx, req.Identity, pkg)
			if err != nil {
				return err
			}
			row, err := s.loadFreeRow(ctx, tx, req.Identity, resetHours, now)
			if err != nil {
				return err
			}
			if err := s.quotaRepo.Refund(ctx, tx, row.ID, toFree, now); err != nil {
				return err
			}
		}

		key := req.IdempotencyKey
		entry := s.newLedgerEntry(req.Identity, ledgerdomain.OperationReversal, now)
		entry.CreditsConsumed = req.Credits
		entry.FreeCreditsConsumed = toFree
		entry.PackageCreditsConsumed = toPackage
		entry.IdempotencyKey = &key
		details := datatypes.JSONMap(req.Details)
		if req.OperationType != "" {
			if details == nil {
				details = datatypes.JSONMap{}
			}
			details["operation_type"] = string(req.OperationType)
		}
		entry.Details = details
		if pkg != nil && toPackage > 0 {
			entry.PackageID = &pkg.ID
		}
		if err := s.ledger.Record(ctx, tx, entry); err != nil {
			return err
		}

		result = &domain.RefundResult{
			FreeReturned:    toFree,
			PackageReturned: toPackage,
			LedgerEntryID:   entry.ID,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrDuplicateEntry) {
			prior, ferr := s.ledger.FindByIdempotencyKey(ctx, s.db, req.IdempotencyKey)
			if ferr != nil {
				return nil, ferr
			}
			if prior != nil {
				return &domain.RefundResult{
					FreeReturned:    prior.FreeCreditsConsumed,
					PackageReturned: prior.PackageCreditsConsumed,
					LedgerEntryID:   prior.ID,
					AlreadyApplied:  true,
				}, nil
			}
		}
		if errors.Is(err, errRetry) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) newLedgerEntry(id identity.AccountingIdentity, op ledgerdomain.OperationType, now time.Time) *ledgerdomain.UsageLedgerEntry {
	entry := &ledgerdomain.UsageLedgerEntry{
		ID:            s.node.Generate(),
		IdentityKey:   id.Key(),
		OperationType: op,
		CreatedAt:     now,
	}
	if !id.Anonymous() {
		entry.UserID = id.UserID
	} else {
		ip, fp := id.IPAddress, id.Fingerprint
		entry.IPAddress = &ip
		entry.Fingerprint = &fp
	}
	return entry
}
