package service

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/clock"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	"github.com/smallbiznis/tirta/internal/complaint/repository"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	customerrepo "github.com/smallbiznis/tirta/internal/customer/repository"
	"github.com/smallbiznis/tirta/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2026, 5, 10, 7, 30, 0, 0, time.UTC)

type fixture struct {
	db   *gorm.DB
	svc  complaintdomain.Service
	clk  *clock.FakeClock
	seed *testutil.Fixtures
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(now)
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		UserRepo: customerrepo.Provide(),
		AuditSvc: testutil.NewAuditService(db, node, clk),
	})
	return &fixture{db: db, svc: svc, clk: clk, seed: testutil.NewFixtures(t, db, node, now)}
}

func TestFileComplaint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seed.User(customerdomain.UserStatusActive)

	complaint, err := f.svc.File(ctx, complaintdomain.FileRequest{
		UserID:      user.ID.String(),
		Type:        " Billing Dispute ",
		Description: "charged twice for March",
	})
	require.NoError(t, err)
	assert.Equal(t, "Billing Dispute", complaint.Type)
	assert.Equal(t, complaintdomain.StatusOpen, complaint.Status)
	assert.True(t, complaint.Date.Equal(now))

	stored, err := f.svc.Get(ctx, complaint.ID.String())
	require.NoError(t, err)
	assert.Equal(t, complaint.Description, stored.Description)

	assert.Len(t, testutil.AuditLogs(t, f.db, auditdomain.ActionComplaintFiled), 1)
}

func TestFileComplaintValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seed.User(customerdomain.UserStatusActive)

	_, err := f.svc.File(ctx, complaintdomain.FileRequest{UserID: "x", Type: "Leak", Description: "d"})
	require.ErrorIs(t, err, complaintdomain.ErrInvalidUser)
	_, err = f.svc.File(ctx, complaintdomain.FileRequest{UserID: user.ID.String(), Description: "d"})
	require.ErrorIs(t, err, complaintdomain.ErrInvalidType)
	_, err = f.svc.File(ctx, complaintdomain.FileRequest{UserID: user.ID.String(), Type: "Leak", Description: " "})
	require.ErrorIs(t, err, complaintdomain.ErrInvalidDescription)
	_, err = f.svc.File(ctx, complaintdomain.FileRequest{UserID: "987654", Type: "Leak", Description: "d"})
	require.ErrorIs(t, err, complaintdomain.ErrUserNotFound)

	assert.Zero(t, testutil.Count(t, f.db, "complaints"))
}

func TestTransitionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seed.User(customerdomain.UserStatusActive)
	complaint := f.seed.Complaint(user.ID, now, complaintdomain.StatusOpen)

	f.clk.Advance(time.Hour)
	updated, err := f.svc.Transition(ctx, complaintdomain.TransitionRequest{ID: complaint.ID.String(), Status: "In Progress"})
	require.NoError(t, err)
	assert.Equal(t, complaintdomain.StatusInProgress, updated.Status)
	assert.True(t, updated.UpdatedAt.Equal(now.Add(time.Hour)))

	response := "  replaced the pressure valve "
	updated, err = f.svc.Transition(ctx, complaintdomain.TransitionRequest{ID: complaint.ID.String(), Status: "Resolved", Response: &response})
	require.NoError(t, err)
	assert.Equal(t, complaintdomain.StatusResolved, updated.Status)
	require.NotNil(t, updated.Response)
	assert.Equal(t, "replaced the pressure valve", *updated.Response)

	stored, err := f.svc.Get(ctx, complaint.ID.String())
	require.NoError(t, err)
	assert.Equal(t, complaintdomain.StatusResolved, stored.Status)

	logs := testutil.AuditLogs(t, f.db, auditdomain.ActionComplaintStatusChanged)
	require.Len(t, logs, 2)
	assert.Equal(t, "In Progress", logs[1].Metadata["from"])
	assert.Equal(t, "Resolved", logs[1].Metadata["to"])
	assert.Equal(t, "replaced the pressure valve", logs[1].Metadata["response"])
}

func TestTransitionRejectsInvalidMoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seed.User(customerdomain.UserStatusActive)
	open := f.seed.Complaint(user.ID, now, complaintdomain.StatusOpen)
	resolved := f.seed.Complaint(user.ID, now, complaintdomain.StatusResolved)

	cases := []struct {
		name string
		req  complaintdomain.TransitionRequest
		want error
	}{
		{"open to resolved", complaintdomain.TransitionRequest{ID: open.ID.String(), Status: "Resolved"}, complaintdomain.ErrInvalidTransition},
		{"manual escalation", complaintdomain.TransitionRequest{ID: open.ID.String(), Status: "Escalated"}, complaintdomain.ErrInvalidTransition},
		{"reopen", complaintdomain.TransitionRequest{ID: resolved.ID.String(), Status: "Open"}, complaintdomain.ErrInvalidTransition},
		{"resolved is terminal", complaintdomain.TransitionRequest{ID: resolved.ID.String(), Status: "In Progress"}, complaintdomain.ErrInvalidTransition},
		{"unknown status", complaintdomain.TransitionRequest{ID: open.ID.String(), Status: "Closed"}, complaintdomain.ErrInvalidStatus},
		{"unknown complaint", complaintdomain.TransitionRequest{ID: "1234", Status: "In Progress"}, complaintdomain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Transition(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, testutil.AuditLogs(t, f.db, auditdomain.ActionComplaintStatusChanged))
}

func TestEscalatedComplaintCanBePickedUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seed.User(customerdomain.UserStatusActive)
	escalated := f.seed.Complaint(user.ID, now.Add(-10*24*time.Hour), complaintdomain.StatusEscalated)

	updated, err := f.svc.Transition(ctx, complaintdomain.TransitionRequest{ID: escalated.ID.String(), Status: "In Progress"})
	require.NoError(t, err)
	assert.Equal(t, complaintdomain.StatusInProgress, updated.Status)
}
