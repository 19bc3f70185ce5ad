package cascade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	alertrepo "github.com/smallbiznis/tirta/internal/alert/repository"
	"github.com/smallbiznis/tirta/internal/alert/rules"
	alertservice "github.com/smallbiznis/tirta/internal/alert/service"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/billing/calculator"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	billingrepo "github.com/smallbiznis/tirta/internal/billing/repository"
	"github.com/smallbiznis/tirta/internal/clock"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	connectionrepo "github.com/smallbiznis/tirta/internal/connection/repository"
	"github.com/smallbiznis/tirta/internal/consumption"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	customerrepo "github.com/smallbiznis/tirta/internal/customer/repository"
	"github.com/smallbiznis/tirta/internal/lock"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	readingrepo "github.com/smallbiznis/tirta/internal/reading/repository"
	"github.com/smallbiznis/tirta/internal/testutil"
	"github.com/smallbiznis/tirta/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC)

type harness struct {
	db     *gorm.DB
	orch   *Orchestrator
	node   *snowflake.Node
	clk    *clock.FakeClock
	locker lock.Locker
	seed   *testutil.Fixtures
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithNotifier(t, nil)
}

func newHarnessWithNotifier(t *testing.T, notifier alertdomain.Notifier) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(now)
	auditSvc := testutil.NewAuditService(db, node, clk)

	alertSvc := alertservice.New(alertservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     alertrepo.Provide(),
		AuditSvc: auditSvc,
		Notifier: notifier,
	})
	engine := rules.NewEngine(rules.Params{
		Log:      zap.NewNop(),
		Clock:    clk,
		Analyzer: consumption.Default(),
	})

	locker := lock.NewLocal()
	orch := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Validator:   readingdomain.DefaultValidator{},
		Readings:    readingrepo.Provide(),
		Bills:       billingrepo.Provide(),
		Connections: connectionrepo.Provide(),
		Users:       customerrepo.Provide(),
		Tariff:      calculator.Static(calculator.Default()),
		Engine:      engine,
		AlertSvc:    alertSvc,
		AuditSvc:    auditSvc,
		Locker:      locker,
	})
	return &harness{
		db:     db,
		orch:   orch,
		node:   node,
		clk:    clk,
		locker: locker,
		seed:   testutil.NewFixtures(t, db, node, now),
	}
}

func units(v float64) *float64 { return &v }

func (h *harness) connection() *connectiondomain.Connection {
	user := h.seed.User(customerdomain.UserStatusActive)
	return h.seed.Connection(user.ID)
}

func (h *harness) activeAlert(t *testing.T, userID snowflake.ID, alertType alertdomain.AlertType, sourceID snowflake.ID) alertdomain.Alert {
	t.Helper()
	alert := alertdomain.Alert{
		ID:         h.node.Generate(),
		UserID:     &userID,
		Type:       alertType,
		Message:    string(alertType),
		Status:     alertdomain.AlertStatusActive,
		Severity:   alertdomain.SeverityMedium,
		Priority:   alertdomain.Priority(alertdomain.SeverityMedium, alertType),
		SourceType: alertdomain.SourceBill,
		SourceID:   &sourceID,
		CreatedAt:  now,
	}
	require.NoError(t, h.db.Create(&alert).Error)
	return alert
}

func (h *harness) alertStatus(t *testing.T, id snowflake.ID) alertdomain.AlertStatus {
	t.Helper()
	var stored alertdomain.Alert
	require.NoError(t, h.db.First(&stored, "id = ?", id).Error)
	return stored.Status
}

func TestRunCascadeFirstHighReading(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()

	result, err := h.orch.RunCascade(context.Background(), readingdomain.NewReading{
		ConnectionID:  conn.ID,
		ReadingDate:   now,
		UnitsConsumed: units(150),
		Source:        readingdomain.SourceOperator,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "2325.00", result.Bill.Amount.StringFixed(2))
	assert.Equal(t, billingdomain.PaymentStatusUnpaid, result.Bill.PaymentStatus)
	assert.Equal(t, result.Reading.ID, result.Bill.ReadingID)
	assert.Equal(t, conn.UserID, result.Bill.UserID)
	assert.NotEmpty(t, result.CorrelationID)
	assert.Empty(t, result.RuleErrors)

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, alertdomain.TypeHighConsumption, result.Alerts[0].Type)
	assert.Equal(t, alertdomain.SeverityMedium, result.Alerts[0].Severity)
	require.NotNil(t, result.Alerts[0].SourceID)
	assert.Equal(t, result.Reading.ID, *result.Alerts[0].SourceID)

	require.Len(t, result.AuditEntries, 3)
	assert.Equal(t, []string{
		auditdomain.ActionReadingAccepted,
		auditdomain.ActionBillCreated,
		auditdomain.ActionAlertRaised,
	}, testutil.AuditActions(t, h.db))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "meter_readings"))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "bills"))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "alerts"))

	logged := testutil.AuditLogs(t, h.db, auditdomain.ActionReadingAccepted)
	require.Len(t, logged, 1)
	assert.Equal(t, result.CorrelationID, logged[0].Metadata["correlation_id"])
	assert.Equal(t, "reading of 150.00 units accepted for meter "+conn.MeterNumber, logged[0].Detail)

	billLogs := testutil.AuditLogs(t, h.db, auditdomain.ActionBillCreated)
	require.Len(t, billLogs, 1)
	assert.Equal(t, "bill 2325.00 created for reading "+result.Reading.ID.String(), billLogs[0].Detail)
}

func TestRunCascadeLowReadingRaisesNothing(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()

	result, err := h.orch.RunCascade(context.Background(), readingdomain.NewReading{
		ConnectionID:  conn.ID,
		ReadingDate:   now,
		UnitsConsumed: units(40),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "589.00", result.Bill.Amount.StringFixed(2))
	assert.Empty(t, result.Alerts)
	assert.Len(t, result.AuditEntries, 2)
}

func TestRunCascadeDetectsLeak(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()
	h.seed.Reading(conn.ID, now.AddDate(0, 0, -30), 90)
	h.seed.Reading(conn.ID, now.AddDate(0, 0, -1), 30)

	// 55 units a day since yesterday, below 1.5x the 60 unit average.
	result, err := h.orch.RunCascade(context.Background(), readingdomain.NewReading{
		ConnectionID:  conn.ID,
		ReadingDate:   now,
		UnitsConsumed: units(85),
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, alertdomain.TypeLeakDetection, result.Alerts[0].Type)
	assert.Equal(t, alertdomain.SeverityHigh, result.Alerts[0].Severity)
}

func TestRunCascadeValidationWritesNothing(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()

	cases := []struct {
		name    string
		reading readingdomain.NewReading
		want    error
	}{
		{
			name:    "missing units",
			reading: readingdomain.NewReading{ConnectionID: conn.ID, ReadingDate: now},
			want:    readingdomain.ErrMissingUnits,
		},
		{
			name:    "negative units",
			reading: readingdomain.NewReading{ConnectionID: conn.ID, ReadingDate: now, UnitsConsumed: units(-3)},
			want:    readingdomain.ErrInvalidUnits,
		},
		{
			name:    "missing date",
			reading: readingdomain.NewReading{ConnectionID: conn.ID, UnitsConsumed: units(10)},
			want:    readingdomain.ErrMissingDate,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.orch.RunCascade(context.Background(), tc.reading, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.True(t, errors.Is(err, errs.ErrValidation))
		})
	}

	assert.Equal(t, int64(0), testutil.Count(t, h.db, "meter_readings"))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "bills"))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "audit_logs"))
}

func TestRunCascadeUnknownOrDeletedConnection(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.RunCascade(context.Background(), readingdomain.NewReading{
		ConnectionID:  h.node.Generate(),
		ReadingDate:   now,
		UnitsConsumed: units(10),
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	conn := h.connection()
	ok, err := connectionrepo.Provide().SoftDelete(context.Background(), h.db, conn.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.orch.RunCascade(context.Background(), readingdomain.NewReading{
		ConnectionID:  conn.ID,
		ReadingDate:   now,
		UnitsConsumed: units(10),
	}, nil)
	assert.True(t, errors.Is(err, connectiondomain.ErrNotFound), "got %v", err)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "bills"))
}

func TestRunCascadeReplayConflicts(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()
	reading := readingdomain.NewReading{
		ID:            h.node.Generate(),
		ConnectionID:  conn.ID,
		ReadingDate:   now,
		UnitsConsumed: units(30),
	}

	first, err := h.orch.RunCascade(context.Background(), reading, nil)
	require.NoError(t, err)
	assert.Equal(t, reading.ID, first.Reading.ID)

	_, err = h.orch.RunCascade(context.Background(), reading, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConflict))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "bills"))
}

type failingRule struct{ panics bool }

func (r failingRule) Name() string {
	if r.panics {
		return "panicking"
	}
	return "failing"
}

func (r failingRule) Evaluate(rules.Event, time.Time) ([]alertdomain.Alert, error) {
	if r.panics {
		panic("boom")
	}
	return nil, errors.New("rule broke")
}

func TestRunCascadeRuleErrorsKeepBill(t *testing.T) {
	h := newHarness(t)
	h.orch.readingEng = h.orch.readingEng.WithRules(failingRule{}, failingRule{panics: true})
	conn := h.connection()

	result, err := h.orch.RunCascade(context.Background(), readingdomain.NewReading{
		ConnectionID:  conn.ID,
		ReadingDate:   now,
		UnitsConsumed: units(250),
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.RuleErrors, 2)
	for _, ruleErr := range result.RuleErrors {
		assert.True(t, errors.Is(ruleErr, errs.ErrRuleEvaluation))
	}
	assert.Empty(t, result.Alerts)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "bills"))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "alerts"))
}

func TestRunCascadeDoesNotDuplicateActiveAlert(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()

	result, err := h.orch.RunCascade(context.Background(), readingdomain.NewReading{
		ConnectionID:  conn.ID,
		ReadingDate:   now,
		UnitsConsumed: units(120),
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Alerts, 1)

	// A draft for the same reading is skipped while the first alert is Active.
	persisted, failures := h.orch.persistAlerts(context.Background(), h.db, result.Alerts)
	assert.Empty(t, failures)
	assert.Empty(t, persisted.Created)
	assert.Len(t, persisted.Skipped, 1)
}

func TestRunCascadeSerialisesPerConnection(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()

	var wg sync.WaitGroup
	errCh := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			_, err := h.orch.RunCascade(context.Background(), readingdomain.NewReading{
				ConnectionID:  conn.ID,
				ReadingDate:   now.AddDate(0, 0, -day*30),
				UnitsConsumed: units(20),
			}, nil)
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(5), testutil.Count(t, h.db, "bills"))
}

func TestRecordPaymentResolvesOnlyPaymentOverdue(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()
	other := h.connection()
	bill := h.seed.Bill(conn, now.AddDate(0, 0, -40), "310.00", billingdomain.PaymentStatusOverdue)
	otherBill := h.seed.Bill(other, now.AddDate(0, 0, -40), "310.00", billingdomain.PaymentStatusOverdue)

	overdue := h.activeAlert(t, conn.UserID, alertdomain.TypePaymentOverdue, bill.ID)
	high := h.activeAlert(t, conn.UserID, alertdomain.TypeHighConsumption, bill.ReadingID)
	otherOverdue := h.activeAlert(t, other.UserID, alertdomain.TypePaymentOverdue, otherBill.ID)

	result, err := h.orch.RecordPayment(context.Background(), bill.ID, "cash")
	require.NoError(t, err)

	assert.Equal(t, billingdomain.PaymentStatusPaid, result.Bill.PaymentStatus)
	require.NotNil(t, result.Bill.PaymentMethod)
	assert.Equal(t, "cash", *result.Bill.PaymentMethod)
	assert.Equal(t, []string{overdue.ID.String()}, result.ResolvedAlerts)

	assert.Equal(t, alertdomain.AlertStatusResolved, h.alertStatus(t, overdue.ID))
	assert.Equal(t, alertdomain.AlertStatusActive, h.alertStatus(t, high.ID))
	assert.Equal(t, alertdomain.AlertStatusActive, h.alertStatus(t, otherOverdue.ID))

	paid := testutil.AuditLogs(t, h.db, auditdomain.ActionBillPaid)
	require.Len(t, paid, 1)
	ids, ok := paid[0].Metadata["resolved_alert_ids"].([]any)
	require.True(t, ok, "metadata %v", paid[0].Metadata)
	assert.Equal(t, []any{overdue.ID.String()}, ids)
	assert.Equal(t, []string{auditdomain.ActionBillPaid}, testutil.AuditActions(t, h.db))
}

func TestChangeBillStatusIsForwardOnly(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()
	bill := h.seed.Bill(conn, now.AddDate(0, 0, -3), "100.00", billingdomain.PaymentStatusUnpaid)

	_, err := h.orch.RecordPayment(context.Background(), bill.ID, "")
	assert.True(t, errors.Is(err, billingdomain.ErrInvalidMethod))

	_, err = h.orch.RecordPayment(context.Background(), bill.ID, "transfer")
	require.NoError(t, err)

	for _, to := range []billingdomain.PaymentStatus{
		billingdomain.PaymentStatusUnpaid,
		billingdomain.PaymentStatusOverdue,
		billingdomain.PaymentStatusPaid,
	} {
		_, err := h.orch.ChangeBillStatus(context.Background(), ChangeStatusRequest{BillID: bill.ID, Status: to, Method: "cash"})
		require.Error(t, err, "to %s", to)
		assert.True(t, errors.Is(err, billingdomain.ErrInvalidTransition), "to %s: %v", to, err)
	}

	_, err = h.orch.RecordPayment(context.Background(), h.node.Generate(), "cash")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestChangeBillStatusOverdueRaisesPaymentOverdue(t *testing.T) {
	h := newHarness(t)
	conn := h.connection()
	bill := h.seed.Bill(conn, now.AddDate(0, 0, -40), "250.00", billingdomain.PaymentStatusUnpaid)

	result, err := h.orch.ChangeBillStatus(context.Background(), ChangeStatusRequest{
		BillID: bill.ID,
		Status: billingdomain.PaymentStatusOverdue,
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.PaymentStatusOverdue, result.Bill.PaymentStatus)

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, alertdomain.TypePaymentOverdue, result.Alerts[0].Type)
	assert.Equal(t, alertdomain.SeverityHigh, result.Alerts[0].Severity)
	assert.Equal(t, []string{
		auditdomain.ActionBillStatusChanged,
		auditdomain.ActionAlertRaised,
	}, testutil.AuditActions(t, h.db))

	changed := testutil.AuditLogs(t, h.db, auditdomain.ActionBillStatusChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, "bill "+bill.ID.String()+" moved from Unpaid to Overdue", changed[0].Detail)

	paid, err := h.orch.RecordPayment(context.Background(), bill.ID, "cash")
	require.NoError(t, err)
	assert.Equal(t, []string{result.Alerts[0].ID.String()}, paid.ResolvedAlerts)

	paidLogs := testutil.AuditLogs(t, h.db, auditdomain.ActionBillPaid)
	require.Len(t, paidLogs, 1)
	assert.Equal(t, "bill "+bill.ID.String()+" paid by cash, 1 payment overdue alerts resolved", paidLogs[0].Detail)
}

type blockingNotifier struct {
	entered chan struct{}
	unblock chan struct{}
	once    sync.Once
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{entered: make(chan struct{}), unblock: make(chan struct{})}
}

// NotifyAlerts blocks the first batch until unblock is closed.
func (n *blockingNotifier) NotifyAlerts(_ context.Context, _ []alertdomain.Alert) error {
	first := false
	n.once.Do(func() {
		close(n.entered)
		first = true
	})
	if first {
		<-n.unblock
	}
	return nil
}

func TestRunCascadeReleasesLockBeforeNotifying(t *testing.T) {
	notifier := newBlockingNotifier()
	h := newHarnessWithNotifier(t, notifier)
	conn := h.connection()

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.RunCascade(context.Background(), readingdomain.NewReading{
			ConnectionID:  conn.ID,
			ReadingDate:   now,
			UnitsConsumed: units(150),
		}, nil)
		done <- err
	}()

	select {
	case <-notifier.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("notifier was never called")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	release, err := h.locker.Acquire(ctx, "connection:"+conn.ID.String())
	require.NoError(t, err)
	release()

	_, err = h.orch.RunCascade(ctx, readingdomain.NewReading{
		ConnectionID:  conn.ID,
		ReadingDate:   now.AddDate(0, 0, 30),
		UnitsConsumed: units(20),
	}, nil)
	require.NoError(t, err)

	close(notifier.unblock)
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), testutil.Count(t, h.db, "bills"))
}

func TestChangeBillStatusReleasesLockBeforeNotifying(t *testing.T) {
	notifier := newBlockingNotifier()
	h := newHarnessWithNotifier(t, notifier)
	user := h.seed.User(customerdomain.UserStatusActive)
	conn := h.seed.Connection(user.ID)
	bill := h.seed.Bill(conn, now.AddDate(0, 0, -40), "250.00", billingdomain.PaymentStatusUnpaid)

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.ChangeBillStatus(context.Background(), ChangeStatusRequest{
			BillID: bill.ID,
			Status: billingdomain.PaymentStatusOverdue,
		})
		done <- err
	}()

	select {
	case <-notifier.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("notifier was never called")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	release, err := h.locker.Acquire(ctx, "user:"+user.ID.String())
	require.NoError(t, err)
	release()

	close(notifier.unblock)
	require.NoError(t, <-done)
}
