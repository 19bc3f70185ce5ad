package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// StatusUpdate moves a bill from From to To. The update only applies while the
// stored status still equals From.
type StatusUpdate struct {
	ID            snowflake.ID
	From          PaymentStatus
	To            PaymentStatus
	PaymentDate   *time.Time
	PaymentMethod *string
	UpdatedAt     time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindByReadingID(ctx context.Context, db *gorm.DB, readingID snowflake.ID) (*Bill, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Bill, error)
	// ListByStatus returns bills in any of statuses ordered by bill_date.
	ListByStatus(ctx context.Context, db *gorm.DB, statuses ...PaymentStatus) ([]Bill, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, update StatusUpdate) (bool, error)
	// CountUnpaidByUser counts bills not yet Paid per user, following
	// connection -> reading -> bill.
	CountUnpaidByUser(ctx context.Context, db *gorm.DB) (map[snowflake.ID]int, error)
}
