package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tirta/pkg/db/option"
	"github.com/smallbiznis/tirta/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID     int64  `gorm:"primaryKey"`
	Name   string `gorm:"type:text"`
	Status string `gorm:"type:text"`
}

func setupStore(t *testing.T) (*gorm.DB, Store[widget]) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn, ProvideStore[widget](conn, "widget_not_found")
}

func TestStoreGetPut(t *testing.T) {
	ctx := context.Background()
	_, s := setupStore(t)

	_, err := s.Get(ctx, int64(1))
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, err, errs.NotFound("widget_not_found"))

	require.NoError(t, s.Put(ctx, &widget{ID: 1, Name: "a", Status: "active"}))
	require.NoError(t, s.Put(ctx, &widget{ID: 1, Name: "b", Status: "active"}))

	got, err := s.Get(ctx, int64(1))
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)

	count, err := s.Count(ctx, &widget{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestStoreQueryAndUpdate(t *testing.T) {
	ctx := context.Background()
	_, s := setupStore(t)

	for i, status := range []string{"active", "inactive", "active"} {
		require.NoError(t, s.Create(ctx, &widget{ID: int64(i + 1), Name: "w", Status: status}))
	}

	active, err := s.Query(ctx, &widget{Status: "active"}, option.WithOrder("id", true))
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.EqualValues(t, 3, active[0].ID)

	limited, err := s.Query(ctx, nil, option.WithLimit(1))
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := s.Update(ctx, int64(2), map[string]any{"status": "active"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	none, err := s.FindOne(ctx, &widget{Status: "inactive"})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStoreWithTrxRollsBack(t *testing.T) {
	ctx := context.Background()
	conn, s := setupStore(t)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, s.WithTrx(tx).Create(ctx, &widget{ID: 9, Name: "tx"}))
		return assert.AnError
	})

	_, err := s.Get(ctx, int64(9))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
