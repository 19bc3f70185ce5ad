package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID *snowflake.ID
	Status AlertStatus
	Type   AlertType
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, alert *Alert) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Alert, error)
	FindActiveBySource(ctx context.Context, db *gorm.DB, alertType AlertType, sourceType string, sourceID snowflake.ID) (*Alert, error)
	// Resolve moves an Active alert to Resolved and reports whether a row changed.
	Resolve(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	// ResolveActiveByUserAndType resolves every Active alert of the given type
	// for the user and returns the resolved ids.
	ResolveActiveByUserAndType(ctx context.Context, db *gorm.DB, userID snowflake.ID, alertType AlertType, now time.Time) ([]snowflake.ID, error)
	// List orders by priority then newest first.
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Alert, error)
}
