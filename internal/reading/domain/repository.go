package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository exposes inserts and reads only.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reading *MeterReading) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MeterReading, error)
	// ListByConnection returns readings ordered by reading_date ascending.
	ListByConnection(ctx context.Context, db *gorm.DB, connectionID snowflake.ID) ([]MeterReading, error)
	Latest(ctx context.Context, db *gorm.DB, connectionID snowflake.ID) (*MeterReading, error)
}
