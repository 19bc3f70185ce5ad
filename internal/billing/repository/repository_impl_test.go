package repository

import (
	"context"
	"testing"
	"time"

	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	"github.com/smallbiznis/tirta/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountUnpaidByUser(t *testing.T) {
	db := testutil.OpenDB(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	seed := testutil.NewFixtures(t, db, testutil.NewNode(t), now)

	alice := seed.User(customerdomain.UserStatusActive)
	bob := seed.User(customerdomain.UserStatusActive)
	aliceHome := seed.Connection(alice.ID)
	aliceShop := seed.Connection(alice.ID)
	bobHome := seed.Connection(bob.ID)

	seed.Bill(aliceHome, now.AddDate(0, -2, 0), "10.00", billingdomain.PaymentStatusOverdue)
	seed.Bill(aliceShop, now.AddDate(0, -1, 0), "10.00", billingdomain.PaymentStatusUnpaid)
	seed.Bill(aliceHome, now, "10.00", billingdomain.PaymentStatusUnpaid)
	seed.Bill(bobHome, now, "10.00", billingdomain.PaymentStatusPaid)

	counts, err := Provide().CountUnpaidByUser(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[alice.ID])
	_, ok := counts[bob.ID]
	assert.False(t, ok)
}

func TestListByStatusOrdersByBillDate(t *testing.T) {
	db := testutil.OpenDB(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	seed := testutil.NewFixtures(t, db, testutil.NewNode(t), now)
	conn := seed.Connection(seed.User(customerdomain.UserStatusActive).ID)

	late := seed.Bill(conn, now, "1.00", billingdomain.PaymentStatusUnpaid)
	early := seed.Bill(conn, now.AddDate(0, -1, 0), "2.00", billingdomain.PaymentStatusOverdue)
	seed.Bill(conn, now, "3.00", billingdomain.PaymentStatusPaid)

	repo := Provide()
	bills, err := repo.ListByStatus(context.Background(), db, billingdomain.PaymentStatusUnpaid, billingdomain.PaymentStatusOverdue)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, early.ID, bills[0].ID)
	assert.Equal(t, late.ID, bills[1].ID)
	assert.True(t, bills[0].Amount.Equal(early.Amount))

	none, err := repo.ListByStatus(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, none)
}
