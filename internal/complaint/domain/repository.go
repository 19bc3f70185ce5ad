package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, complaint *Complaint) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Complaint, error)
	ListByStatus(ctx context.Context, db *gorm.DB, statuses ...Status) ([]Complaint, error)
	// UpdateStatus applies only while the stored status equals from.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, response *string, now time.Time) (bool, error)
}
