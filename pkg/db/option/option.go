// Package option carries query modifiers for the generic store.
package option

import (
	"fmt"

	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryFunc func(db *gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithOrder orders by column, ascending unless desc is set.
func WithOrder(column string, desc bool) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", column, dir))
	})
}

func WithLimit(limit int) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithWhere appends a raw condition.
func WithWhere(query string, args ...any) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// WithUnscoped includes soft-deleted rows.
func WithUnscoped() QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	})
}
