package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/clock"
	"github.com/cardlens/creditd/internal/ledger/domain"
	pkgdb "github.com/cardlens/creditd/pkg/db"
	"github.com/cardlens/creditd/pkg/db/option"
	"github.com/cardlens/creditd/pkg/db/pagination"
	"github.com/cardlens/creditd/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Node  *snowflake.Node
	Store repository.Repository[domain.UsageLedgerEntry]
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	node  *snowflake.Node
	store repository.Repository[domain.UsageLedgerEntry]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		clock: p.Clock,
		node:  p.Node,
		store: p.Store,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry *domain.UsageLedgerEntry) error {
	if entry == nil || entry.IdentityKey == "" || entry.OperationType == "" {
		return domain.ErrInvalidEntry
	}
	if entry.ID == 0 {
		entry.ID = s.node.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}

	if err := s.store.WithTrx(tx).Create(ctx, entry); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.ErrDuplicateEntry
		}
		return err
	}
	return nil
}

func (s *Service) FindByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*domain.UsageLedgerEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	return s.store.WithTrx(tx).FindOne(ctx, &domain.UsageLedgerEntry{IdempotencyKey: &key})
}

func (s *Service) ReassignIdentity(ctx context.Context, tx *gorm.DB, fromKey string, userID snowflake.ID, toKey string) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE usage_ledger_entries
		 SET identity_key = ?, user_id = ?, ip_address = NULL, fingerprint = NULL
		 WHERE identity_key = ?`,
		toKey, userID, fromKey,
	)
	return res.RowsAffected, res.Error
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]*domain.UsageLedgerEntry, *pagination.PageInfo, error) {
	size := req.PageSize
	if size <= 0 {
		size = 25
	}

	filter := &domain.UsageLedgerEntry{
		IdentityKey:   strings.TrimSpace(req.IdentityKey),
		OperationType: req.OperationType,
	}

	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.WithLimit(size + 1),
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, nil, domain.ErrInvalidPageToken
		}
		opts = append(opts, option.WithCursorBefore(cursor))
	}

	entries, err := s.store.Find(ctx, filter, opts...)
	if err != nil {
		return nil, nil, err
	}

	pageInfo, entries := pagination.BuildCursorPageInfo(entries, size, func(e *domain.UsageLedgerEntry) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		return token
	})
	return entries, pageInfo, nil
}

func (s *Service) Stats(ctx context.Context, req domain.StatsRequest) (*domain.Stats, error) {
	base := s.db.WithContext(ctx).Model(&domain.UsageLedgerEntry{})
	if key := strings.TrimSpace(req.IdentityKey); key != "" {
		base = base.Where("identity_key = ?", key)
	}
	if req.From != nil {
		base = base.Where("created_at >= ?", *req.From)
	}
	if req.To != nil {
		base = base.Where("created_at < ?", *req.To)
	}

	var byOperation []struct {
		OperationType domain.OperationType
		Total         int
	}
	err := base.Session(&gorm.Session{}).
		Select("operation_type, COALESCE(SUM(credits_consumed), 0) AS total").
		Group("operation_type").
		Scan(&byOperation).Error
	if err != nil {
		return nil, err
	}

	stats := &domain.Stats{ByOperation: make(map[domain.OperationType]int, len(byOperation))}
	for _, row := range byOperation {
		stats.ByOperation[row.OperationType] = row.Total
		if row.OperationType.Spend() {
			stats.TotalConsumed += row.Total
		}
		if row.OperationType == domain.OperationReversal {
			stats.TotalConsumed -= row.Total
		}
	}

	var byMonth []struct {
		Month string
		Total int
	}
	err = base.Session(&gorm.Session{}).
		Select(s.monthExpr() + " AS month, COALESCE(SUM(credits_consumed), 0) AS total").
		Where("operation_type IN ?", domain.SpendOperations()).
		Group("month").
		Order("month ASC").
		Scan(&byMonth).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byMonth {
		stats.ByMonth = append(stats.ByMonth, domain.MonthTotal{Month: row.Month, CreditsConsumed: row.Total})
	}

	return stats, nil
}

func (s *Service) monthExpr() string {
	switch s.db.Dialector.Name() {
	case "postgres":
		return "to_char(created_at, 'YYYY-MM')"
	case "mysql":
		return "DATE_FORMAT(created_at, '%Y-%m')"
	default:
		return "strftime('%Y-%m', created_at)"
	}
}
