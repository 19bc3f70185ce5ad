package domain

import (
	"context"
	"math"

	"github.com/smallbiznis/tirta/pkg/errs"
)

var (
	ErrMissingUnits      = errs.Validation("missing_units")
	ErrInvalidUnits      = errs.Validation("invalid_units")
	ErrMissingDate       = errs.Validation("missing_reading_date")
	ErrMissingConnection = errs.Validation("missing_connection")
	ErrNotFound          = errs.NotFound("meter_reading_not_found")
	ErrDuplicateReading  = errs.Conflict("meter_reading_already_accepted")
)

// Validator checks a submitted reading before anything is written.
type Validator interface {
	Validate(ctx context.Context, reading NewReading) error
}

type DefaultValidator struct{}

func (DefaultValidator) Validate(_ context.Context, reading NewReading) error {
	if reading.ConnectionID == 0 {
		return ErrMissingConnection
	}
	if reading.UnitsConsumed == nil {
		return ErrMissingUnits
	}
	units := *reading.UnitsConsumed
	if math.IsNaN(units) || math.IsInf(units, 0) || units < 0 {
		return ErrInvalidUnits
	}
	if reading.ReadingDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}
