package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	"github.com/smallbiznis/tirta/pkg/db/option"
	"github.com/smallbiznis/tirta/pkg/errs"
	"github.com/smallbiznis/tirta/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() customerdomain.Repository {
	return &repo{}
}

func (r *repo) store(db *gorm.DB) repository.Store[customerdomain.User] {
	return repository.ProvideStore[customerdomain.User](db, "user_not_found")
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *customerdomain.User) error {
	return r.store(db).Create(ctx, user)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*customerdomain.User, error) {
	user, err := r.store(db).Get(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*customerdomain.User, error) {
	return r.store(db).FindOne(ctx, &customerdomain.User{Email: email})
}

func (r *repo) List(ctx context.Context, db *gorm.DB, status customerdomain.UserStatus) ([]*customerdomain.User, error) {
	return r.store(db).Query(ctx, &customerdomain.User{Status: status}, option.WithOrder("created_at", false))
}

func (r *repo) Suspend(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		customerdomain.UserStatusSuspended,
		now,
		id,
		customerdomain.UserStatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
