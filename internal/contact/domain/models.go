// Package domain holds contact records captured before and after
// signup. Anonymous rows carry a session id until migration attaches
// them to a user.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Contact struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID             *snowflake.ID `gorm:"index" json:"user_id,omitempty"`
	AnonymousSessionID *string       `gorm:"type:text;index" json:"anonymous_session_id,omitempty"`

	Email string `gorm:"type:text" json:"email,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Contact) TableName() string { return "contacts" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contact *Contact) error
	CountBySession(ctx context.Context, db *gorm.DB, sessionID string) (int64, error)

	// ReassignToUser attaches a session's contacts to the user and
	// clears the session id; returns the number of rows moved.
	ReassignToUser(ctx context.Context, db *gorm.DB, sessionID string, userID snowflake.ID, now time.Time) (int64, error)
}
