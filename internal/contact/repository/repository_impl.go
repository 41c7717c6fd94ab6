package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/contact/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contact *domain.Contact) error {
	return db.WithContext(ctx).Create(contact).Error
}

func (r *repo) CountBySession(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Contact{}).
		Where("anonymous_session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

func (r *repo) ReassignToUser(ctx context.Context, db *gorm.DB, sessionID string, userID snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE contacts
		 SET user_id = ?, anonymous_session_id = NULL, updated_at = ?
		 WHERE anonymous_session_id = ?`,
		userID, now, sessionID,
	)
	return res.RowsAffected, res.Error
}
