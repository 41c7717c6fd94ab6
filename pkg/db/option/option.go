package option

import (
	"github.com/cardlens/creditd/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func WithLimit(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}

func WithOrder(expr string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if expr == "" {
			return db
		}
		return db.Order(expr)
	})
}

// WithCursorBefore continues a created_at/id descending scan after the
// given cursor position.
func WithCursorBefore(cursor *pagination.Cursor) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if cursor == nil || cursor.ID == "" || cursor.CreatedAt == "" {
			return db
		}
		return db.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	})
}

// ApplyPagination fetches one extra row so callers can detect has_more.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 25
		}
		return db.Limit(size + 1)
	})
}
