package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Service interface {
	GetByID(ctx context.Context, id string) (*Bill, error)
	ListByUser(ctx context.Context, userID string) ([]Bill, error)
	// Outstanding sums open bills of the user including late fees as of now.
	Outstanding(ctx context.Context, userID string) (decimal.Decimal, error)
}
