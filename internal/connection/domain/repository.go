package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, conn *Connection) error
	// FindByID ignores soft-deleted connections.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Connection, error)
	FindByMeterNumber(ctx context.Context, db *gorm.DB, meterNumber string) (*Connection, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Connection, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]*Connection, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}
