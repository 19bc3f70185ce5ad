package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	"github.com/smallbiznis/tirta/internal/alert/rules"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/billing/calculator"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/clock"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	"github.com/smallbiznis/tirta/internal/lock"
	"github.com/smallbiznis/tirta/internal/observability/logger"
	"github.com/smallbiznis/tirta/internal/observability/metrics"
	"github.com/smallbiznis/tirta/internal/observability/tracing"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"github.com/smallbiznis/tirta/pkg/db"
	"github.com/smallbiznis/tirta/pkg/errs"
	"github.com/smallbiznis/tirta/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Validator   readingdomain.Validator
	Readings    readingdomain.Repository
	Bills       billingdomain.Repository
	Connections connectiondomain.Repository
	Users       customerdomain.Repository
	Tariff      calculator.Provider
	Engine      *rules.Engine
	AlertSvc    alertdomain.Service
	AuditSvc    auditdomain.Service
	Locker      lock.Locker
	Authz       authorization.Service `optional:"true"`
	Metrics     *metrics.Metrics      `optional:"true"`
}

// Orchestrator turns accepted readings into bills and alerts, and moves bills
// through their payment states.
type Orchestrator struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	validator   readingdomain.Validator
	readings    readingdomain.Repository
	bills       billingdomain.Repository
	connections connectiondomain.Repository
	users       customerdomain.Repository
	tariff      calculator.Provider
	readingEng  *rules.Engine
	billEng     *rules.Engine
	alertSvc    alertdomain.Service
	auditSvc    auditdomain.Service
	locker      lock.Locker
	authz       authorization.Service
	metrics     *metrics.Metrics
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		db:          p.DB,
		log:         p.Log.Named("cascade.orchestrator"),
		genID:       p.GenID,
		clock:       p.Clock,
		validator:   p.Validator,
		readings:    p.Readings,
		bills:       p.Bills,
		connections: p.Connections,
		users:       p.Users,
		tariff:      p.Tariff,
		readingEng:  p.Engine.Only(rules.RuleHighConsumption, rules.RuleLeakDetection),
		billEng:     p.Engine.Only(rules.RulePaymentOverdue),
		alertSvc:    p.AlertSvc,
		auditSvc:    p.AuditSvc,
		locker:      p.Locker,
		authz:       p.Authz,
		metrics:     p.Metrics,
	}
}

// DefaultLookup reads connections and users through the orchestrator's
// repositories.
func (o *Orchestrator) DefaultLookup() Lookup {
	return StoreLookup{DB: o.db, Connections: o.connections, Users: o.users}
}

// RunCascade validates reading, stores it with its bill and raises the
// consumption alerts it triggers. A nil lookup uses DefaultLookup.
func (o *Orchestrator) RunCascade(ctx context.Context, reading readingdomain.NewReading, lookup Lookup) (result *Result, err error) {
	if err := o.authorize(ctx, authorization.ObjectReading, authorization.ActionReadingSubmit); err != nil {
		return nil, err
	}
	if lookup == nil {
		lookup = o.DefaultLookup()
	}
	if err := o.validator.Validate(ctx, reading); err != nil {
		o.metrics.RecordReadingRejected(ctx, rejectReason(err))
		return nil, err
	}

	conn, err := lookup.Connection(ctx, reading.ConnectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil || conn.DeletedAt.Valid {
		o.metrics.RecordReadingRejected(ctx, rejectReason(connectiondomain.ErrNotFound))
		return nil, connectiondomain.ErrNotFound
	}
	user, err := lookup.User(ctx, conn.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		o.metrics.RecordReadingRejected(ctx, rejectReason(customerdomain.ErrNotFound))
		return nil, customerdomain.ErrNotFound
	}

	release, err := o.locker.Acquire(ctx, "connection:"+conn.ID.String())
	if err != nil {
		return nil, err
	}
	release = sync.OnceFunc(release)
	defer release()

	ctx, cid := correlation.EnsureCorrelationID(context.WithoutCancel(ctx))
	ctx = logger.ContextWithConnection(ctx, conn.ID.String())
	ctx, span := tracing.Start(ctx, "cascade.run",
		attribute.String("connection_id", conn.ID.String()),
		attribute.String("source", reading.Source),
	)
	defer func() { tracing.End(span, err) }()
	log := logger.WithContext(ctx, o.log)

	if reading.ID != 0 {
		existing, err := o.readings.FindByID(ctx, o.db, reading.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, readingdomain.ErrDuplicateReading
		}
	}
	prior, err := o.readings.ListByConnection(ctx, o.db, conn.ID)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	tariff := o.tariff.Tariff()
	units := reading.Units()

	stored := readingdomain.MeterReading{
		ID:            reading.ID,
		ConnectionID:  conn.ID,
		ReadingDate:   reading.ReadingDate.UTC(),
		UnitsConsumed: units,
		CreatedAt:     now,
	}
	if stored.ID == 0 {
		stored.ID = o.genID.Generate()
	}
	bill := billingdomain.Bill{
		ID:            o.genID.Generate(),
		ReadingID:     stored.ID,
		ConnectionID:  conn.ID,
		UserID:        conn.UserID,
		Amount:        tariff.Amount(units),
		PaymentStatus: billingdomain.PaymentStatusUnpaid,
		BillDate:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result = &Result{CorrelationID: cid}
	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.readings.Insert(ctx, tx, &stored); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return readingdomain.ErrDuplicateReading.Wrap(err)
			}
			return err
		}
		if err := o.bills.Insert(ctx, tx, &bill); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return billingdomain.ErrDuplicateReading.Wrap(err)
			}
			return err
		}

		readingLog, err := o.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionReadingAccepted,
			TargetType: auditdomain.TargetReading,
			TargetID:   stored.ID.String(),
			Detail:     fmt.Sprintf("reading of %.2f units accepted for meter %s", units, conn.MeterNumber),
			Metadata: correlation.Annotate(ctx, map[string]any{
				"connection_id":  conn.ID.String(),
				"meter_number":   conn.MeterNumber,
				"units_consumed": units,
				"reading_date":   stored.ReadingDate,
				"source":         reading.Source,
			}),
		})
		if err != nil {
			return err
		}
		billLog, err := o.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionBillCreated,
			TargetType: auditdomain.TargetBill,
			TargetID:   bill.ID.String(),
			Detail:     fmt.Sprintf("bill %s created for reading %s", bill.Amount.StringFixed(2), stored.ID),
			Metadata: correlation.Annotate(ctx, map[string]any{
				"reading_id": stored.ID.String(),
				"user_id":    bill.UserID.String(),
				"amount":     bill.Amount.StringFixed(2),
				"tier":       tariff.Tier(units),
			}),
		})
		if err != nil {
			return err
		}
		result.AuditEntries = append(result.AuditEntries, *readingLog, *billLog)

		drafts, failures := o.readingEng.Evaluate(ctx, rules.NewReading{
			UserID:      conn.UserID,
			MeterNumber: conn.MeterNumber,
			Reading:     stored,
			Prior:       prior,
		})
		for _, failure := range failures {
			result.RuleErrors = append(result.RuleErrors, failure)
		}
		persisted, ruleErrs := o.persistAlerts(ctx, tx, drafts)
		result.Alerts = persisted.Created
		result.AuditEntries = append(result.AuditEntries, persisted.AuditEntries...)
		result.RuleErrors = append(result.RuleErrors, ruleErrs...)
		return nil
	})
	// The cascade ends at commit or rollback. Notification runs unlocked.
	release()
	if err != nil {
		log.Warn("cascade rolled back", zap.Error(err))
		return nil, err
	}

	result.Reading = stored
	result.Bill = bill
	o.metrics.RecordReadingAccepted(ctx, reading.Source)
	o.metrics.RecordBillCreated(ctx, tariff.Tier(units))
	o.alertSvc.Published(ctx, result.Alerts)

	log.Info("reading accepted",
		zap.String("reading_id", stored.ID.String()),
		zap.String("bill_id", bill.ID.String()),
		zap.String("amount", bill.Amount.StringFixed(2)),
		zap.Int("alerts", len(result.Alerts)),
		zap.Int("rule_errors", len(result.RuleErrors)),
	)
	return result, nil
}

type ChangeStatusRequest struct {
	BillID snowflake.ID
	Status billingdomain.PaymentStatus
	// Method is required when Status is Paid.
	Method string
}

// RecordPayment marks the bill Paid.
func (o *Orchestrator) RecordPayment(ctx context.Context, billID snowflake.ID, method string) (*StatusResult, error) {
	return o.ChangeBillStatus(ctx, ChangeStatusRequest{
		BillID: billID,
		Status: billingdomain.PaymentStatusPaid,
		Method: method,
	})
}

// ChangeBillStatus applies a forward payment status transition. Paying a bill
// resolves the user's Active Payment Overdue alerts; marking it Overdue
// evaluates the payment overdue rule.
func (o *Orchestrator) ChangeBillStatus(ctx context.Context, req ChangeStatusRequest) (result *StatusResult, err error) {
	action := authorization.ActionBillChangeStatus
	if req.Status == billingdomain.PaymentStatusPaid {
		action = authorization.ActionBillPay
	}
	if err := o.authorize(ctx, authorization.ObjectBill, action); err != nil {
		return nil, err
	}
	if req.BillID == 0 {
		return nil, billingdomain.ErrInvalidID
	}
	if _, err := billingdomain.ParsePaymentStatus(string(req.Status)); err != nil {
		return nil, err
	}
	method := strings.TrimSpace(req.Method)
	if req.Status == billingdomain.PaymentStatusPaid && method == "" {
		return nil, billingdomain.ErrInvalidMethod
	}

	current, err := o.bills.FindByID(ctx, o.db, req.BillID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, billingdomain.ErrNotFound
	}

	release, err := o.locker.Acquire(ctx, "user:"+current.UserID.String())
	if err != nil {
		return nil, err
	}
	release = sync.OnceFunc(release)
	defer release()

	ctx, cid := correlation.EnsureCorrelationID(context.WithoutCancel(ctx))
	ctx, span := tracing.Start(ctx, "cascade.bill_status",
		attribute.String("bill_id", req.BillID.String()),
		attribute.String("status", string(req.Status)),
	)
	defer func() { tracing.End(span, err) }()
	log := logger.WithContext(ctx, o.log)

	now := o.clock.Now()
	result = &StatusResult{CorrelationID: cid}
	var (
		bill     billingdomain.Bill
		from     billingdomain.PaymentStatus
		resolved []snowflake.ID
	)
	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := o.bills.FindByID(ctx, tx, req.BillID)
		if err != nil {
			return err
		}
		if found == nil {
			return billingdomain.ErrNotFound
		}
		bill = *found
		from = bill.PaymentStatus
		if !billingdomain.CanTransition(from, req.Status) {
			return billingdomain.ErrInvalidTransition
		}

		update := billingdomain.StatusUpdate{
			ID:        bill.ID,
			From:      from,
			To:        req.Status,
			UpdatedAt: now,
		}
		if req.Status == billingdomain.PaymentStatusPaid {
			update.PaymentDate = &now
			update.PaymentMethod = &method
		}
		ok, err := o.bills.UpdateStatus(ctx, tx, update)
		if err != nil {
			return err
		}
		if !ok {
			return billingdomain.ErrInvalidTransition
		}
		bill.PaymentStatus = req.Status
		bill.UpdatedAt = now
		if req.Status == billingdomain.PaymentStatusPaid {
			bill.PaymentDate = update.PaymentDate
			bill.PaymentMethod = update.PaymentMethod
		}

		switch req.Status {
		case billingdomain.PaymentStatusPaid:
			resolved, err = o.alertSvc.ResolvePaymentOverdueTx(ctx, tx, bill.UserID)
			if err != nil {
				return fmt.Errorf("resolve payment overdue alerts: %w", err)
			}
			ids := make([]string, 0, len(resolved))
			for _, id := range resolved {
				ids = append(ids, id.String())
			}
			result.ResolvedAlerts = ids
			entry, err := o.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
				Action:     auditdomain.ActionBillPaid,
				TargetType: auditdomain.TargetBill,
				TargetID:   bill.ID.String(),
				Detail: fmt.Sprintf("bill %s paid by %s, %d payment overdue alerts resolved",
					bill.ID, method, len(ids)),
				Metadata: correlation.Annotate(ctx, map[string]any{
					"from":               string(from),
					"to":                 string(req.Status),
					"amount":             bill.Amount.StringFixed(2),
					"payment_method":     method,
					"resolved_alert_ids": ids,
				}),
			})
			if err != nil {
				return err
			}
			result.AuditEntries = append(result.AuditEntries, *entry)
		default:
			entry, err := o.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
				Action:     auditdomain.ActionBillStatusChanged,
				TargetType: auditdomain.TargetBill,
				TargetID:   bill.ID.String(),
				Detail:     fmt.Sprintf("bill %s moved from %s to %s", bill.ID, from, req.Status),
				Metadata: correlation.Annotate(ctx, map[string]any{
					"from": string(from),
					"to":   string(req.Status),
				}),
			})
			if err != nil {
				return err
			}
			result.AuditEntries = append(result.AuditEntries, *entry)
		}

		if req.Status == billingdomain.PaymentStatusOverdue {
			drafts, failures := o.billEng.Evaluate(ctx, rules.BillStatusChanged{Bill: bill, From: from})
			for _, failure := range failures {
				result.RuleErrors = append(result.RuleErrors, failure)
			}
			persisted, ruleErrs := o.persistAlerts(ctx, tx, drafts)
			result.Alerts = persisted.Created
			result.AuditEntries = append(result.AuditEntries, persisted.AuditEntries...)
			result.RuleErrors = append(result.RuleErrors, ruleErrs...)
		}
		return nil
	})
	release()
	if err != nil {
		return nil, err
	}

	result.Bill = bill
	if req.Status == billingdomain.PaymentStatusPaid {
		o.metrics.RecordBillPaid(ctx, method)
		o.metrics.RecordAlertsResolved(ctx, alertdomain.TypePaymentOverdue.Code(), int64(len(resolved)))
	}
	o.alertSvc.Published(ctx, result.Alerts)

	log.Info("bill status changed",
		zap.String("bill_id", bill.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)),
		zap.Int("resolved_alerts", len(resolved)),
		zap.Int("alerts", len(result.Alerts)),
	)
	return result, nil
}

// persistAlerts stores drafts in a savepoint so a failed alert never rolls
// back the surrounding transaction.
func (o *Orchestrator) persistAlerts(ctx context.Context, tx *gorm.DB, drafts []alertdomain.Alert) (alertdomain.PersistResult, []error) {
	if len(drafts) == 0 {
		return alertdomain.PersistResult{}, nil
	}
	var persisted alertdomain.PersistResult
	err := tx.Transaction(func(sp *gorm.DB) error {
		var err error
		persisted, err = o.alertSvc.PersistTx(ctx, sp, drafts)
		return err
	})
	var ruleErrs []error
	for _, failure := range persisted.Failed {
		ruleErrs = append(ruleErrs, &errs.RuleError{Rule: "alert_persistence", Cause: failure})
	}
	if err != nil {
		o.log.Warn("alert persistence rolled back", zap.Error(err))
		return alertdomain.PersistResult{}, append(ruleErrs, &errs.RuleError{Rule: "alert_persistence", Cause: err})
	}
	return persisted, ruleErrs
}

func (o *Orchestrator) authorize(ctx context.Context, object, action string) error {
	if o.authz == nil {
		return nil
	}
	return o.authz.Authorize(ctx, object, action)
}

func rejectReason(err error) string {
	var coded *errs.Error
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return "unknown"
}
