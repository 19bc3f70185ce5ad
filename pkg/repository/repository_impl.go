package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/tirta/pkg/db"
	"github.com/smallbiznis/tirta/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type store[T any] struct {
	db       *gorm.DB
	notFound string
}

// ProvideStore binds a store to db. notFound is the error code returned by Get
// for a missing id.
func ProvideStore[T any](db *gorm.DB, notFound string) Store[T] {
	return &store[T]{db: db, notFound: notFound}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Store[T] {
	return &store[T]{db: tx, notFound: r.notFound}
}

func (r *store[T]) Get(ctx context.Context, id any) (*T, error) {
	var result T
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, db.Classify(err, r.notFound)
	}
	return &result, nil
}

func (r *store[T]) Put(ctx context.Context, record *T) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
	return db.Classify(err, r.notFound)
}

func (r *store[T]) Query(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	err := r.buildQuery(ctx, filter, opts...).Find(&result).Error
	return result, err
}

func (r *store[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var result T
	err := r.buildQuery(ctx, filter, opts...).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Create(ctx context.Context, record *T) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *store[T]) Update(ctx context.Context, id any, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *store[T]) Count(ctx context.Context, filter *T) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(new(T)).Where(filter).Count(&count).Error
	return count, err
}

func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	stmt := r.db.WithContext(ctx)
	if filter != nil {
		stmt = stmt.Where(filter)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}
