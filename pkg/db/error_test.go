package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/smallbiznis/tirta/pkg/errs"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"pgconn", &pgconn.PgError{Code: "23505"}, true},
		{"pgconn other", &pgconn.PgError{Code: "23503"}, false},
		{"pq", &pq.Error{Code: "23505"}, true},
		{"sqlite", errors.New("UNIQUE constraint failed: bills.reading_id"), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestClassify(t *testing.T) {
	err := Classify(gorm.ErrRecordNotFound, "bill_not_found")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = Classify(&pgconn.PgError{Code: "23505"}, "duplicate_bill")
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.ErrorIs(t, err, errs.Conflict("duplicate_bill"))

	plain := errors.New("boom")
	assert.Equal(t, plain, Classify(plain, "x"))
	assert.NoError(t, Classify(nil, "x"))
}
