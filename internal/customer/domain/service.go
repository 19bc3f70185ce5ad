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
	List(ctx context.Context, status string) ([]Response, error)
}

type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Response struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrInvalidName   = errs.Validation("invalid_name")
	ErrInvalidEmail  = errs.Validation("invalid_email")
	ErrInvalidStatus = errs.Validation("invalid_status")
	ErrInvalidID     = errs.Validation("invalid_id")
	ErrDuplicateUser = errs.Conflict("duplicate_email")
	ErrNotFound      = errs.NotFound("user_not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
