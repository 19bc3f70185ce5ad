package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/pkg/errs"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	GetByMeterNumber(ctx context.Context, meterNumber string) (*Response, error)
	Delete(ctx context.Context, id string) error
}

type RegisterRequest struct {
	UserID      string `json:"user_id"`
	MeterNumber string `json:"meter_number"`
}

type Response struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	MeterNumber string    `json:"meter_number"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidMeterNumber = errs.Validation("invalid_meter_number")
	ErrInvalidID          = errs.Validation("invalid_id")
	ErrInvalidUser        = errs.Validation("invalid_user")
	ErrDuplicateMeter     = errs.Conflict("duplicate_meter_number")
	ErrNotFound           = errs.NotFound("connection_not_found")
	ErrUserNotFound       = errs.NotFound("user_not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
