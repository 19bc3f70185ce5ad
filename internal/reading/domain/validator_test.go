package domain

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/smallbiznis/tirta/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func units(v float64) *float64 { return &v }

func TestDefaultValidator(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		reading NewReading
		want    error
	}{
		{"valid", NewReading{ConnectionID: 1, ReadingDate: date, UnitsConsumed: units(12.5)}, nil},
		{"zero units", NewReading{ConnectionID: 1, ReadingDate: date, UnitsConsumed: units(0)}, nil},
		{"missing connection", NewReading{ReadingDate: date, UnitsConsumed: units(1)}, ErrMissingConnection},
		{"missing units", NewReading{ConnectionID: 1, ReadingDate: date}, ErrMissingUnits},
		{"negative units", NewReading{ConnectionID: 1, ReadingDate: date, UnitsConsumed: units(-0.1)}, ErrInvalidUnits},
		{"nan units", NewReading{ConnectionID: 1, ReadingDate: date, UnitsConsumed: units(math.NaN())}, ErrInvalidUnits},
		{"infinite units", NewReading{ConnectionID: 1, ReadingDate: date, UnitsConsumed: units(math.Inf(1))}, ErrInvalidUnits},
		{"missing date", NewReading{ConnectionID: 1, UnitsConsumed: units(3)}, ErrMissingDate},
	}

	var v DefaultValidator
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(context.Background(), tc.reading)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestNewReadingUnits(t *testing.T) {
	assert.Zero(t, NewReading{}.Units())
	assert.Equal(t, 7.25, NewReading{UnitsConsumed: units(7.25)}.Units())
}
