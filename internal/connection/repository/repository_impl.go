package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	"github.com/smallbiznis/tirta/pkg/db/option"
	"github.com/smallbiznis/tirta/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() connectiondomain.Repository {
	return &repo{}
}

func (r *repo) store(db *gorm.DB) repository.Store[connectiondomain.Connection] {
	return repository.ProvideStore[connectiondomain.Connection](db, "connection_not_found")
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, conn *connectiondomain.Connection) error {
	return r.store(db).Create(ctx, conn)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*connectiondomain.Connection, error) {
	return r.store(db).FindOne(ctx, &connectiondomain.Connection{ID: id})
}

func (r *repo) FindByMeterNumber(ctx context.Context, db *gorm.DB, meterNumber string) (*connectiondomain.Connection, error) {
	return r.store(db).FindOne(ctx, &connectiondomain.Connection{MeterNumber: meterNumber})
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*connectiondomain.Connection, error) {
	return r.store(db).Query(ctx, &connectiondomain.Connection{UserID: userID}, option.WithOrder("created_at", false))
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]*connectiondomain.Connection, error) {
	return r.store(db).Query(ctx, &connectiondomain.Connection{Status: connectiondomain.ConnectionStatusActive}, option.WithOrder("id", false))
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE connections SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now,
		now,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
