package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Plan, error)
	List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*Plan, error)
	// FindOldestActiveFree returns the deterministic default free profile:
	// the oldest active free-tier row.
	FindOldestActiveFree(ctx context.Context, db *gorm.DB) (*Plan, error)
}
