// Package repository is the generic key-based entity store used by the
// domain repositories.
package repository

import (
	"context"

	"github.com/smallbiznis/tirta/pkg/db/option"
	"gorm.io/gorm"
)

// Store reads and writes records of one table keyed by id.
type Store[T any] interface {
	WithTrx(tx *gorm.DB) Store[T]

	// Get returns the record with id or a not-found error.
	Get(ctx context.Context, id any) (*T, error)
	// Put inserts or fully replaces the record.
	Put(ctx context.Context, record *T) error
	// Query returns records matching the non-zero fields of filter.
	Query(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns the first match or nil.
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)

	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, id any, fields map[string]any) (int64, error)
	Count(ctx context.Context, filter *T) (int64, error)
}
