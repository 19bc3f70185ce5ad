package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	List(ctx context.Context, db *gorm.DB, status UserStatus) ([]*User, error)
	// Suspend moves an Active user to Suspended and reports whether a row changed.
	Suspend(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}
