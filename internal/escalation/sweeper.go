package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	"github.com/smallbiznis/tirta/internal/alert/rules"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/auditcontext"
	"github.com/smallbiznis/tirta/internal/billing/calculator"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/cascade"
	"github.com/smallbiznis/tirta/internal/clock"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	"github.com/smallbiznis/tirta/internal/observability/metrics"
	"github.com/smallbiznis/tirta/internal/observability/tracing"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Job names.
const (
	JobEscalateComplaints   = "escalate_complaints"
	JobSuspendDelinquent    = "suspend_delinquent_users"
	JobMarkOverdueBills     = "mark_overdue_bills"
	JobPaymentOverdueAlerts = "payment_overdue_alerts"
	JobReadingDueAlerts     = "reading_due_alerts"
)

var ErrInvalidConfig = errors.New("invalid_sweeper_config")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Complaints  complaintdomain.Repository
	Users       customerdomain.Repository
	Bills       billingdomain.Repository
	Connections connectiondomain.Repository
	Readings    readingdomain.Repository
	Tariff      calculator.Provider
	Engine      *rules.Engine
	AlertSvc    alertdomain.Service
	AuditSvc    auditdomain.Service
	Cascade     *cascade.Orchestrator
	Metrics     *metrics.SweeperMetrics `optional:"true"`
	Config      Config                  `optional:"true"`
}

// Sweeper applies the time-driven transitions: complaint escalation, user
// suspension, overdue bills and the alerts that follow from them.
type Sweeper struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	complaints    complaintdomain.Repository
	users         customerdomain.Repository
	bills         billingdomain.Repository
	connections   connectiondomain.Repository
	readings      readingdomain.Repository
	tariff        calculator.Provider
	complaintEng  *rules.Engine
	paymentEng    *rules.Engine
	readingDueEng *rules.Engine
	alertSvc      alertdomain.Service
	auditSvc      auditdomain.Service
	cascade       *cascade.Orchestrator
	metrics       *metrics.SweeperMetrics
}

func New(p Params) (*Sweeper, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Engine == nil || p.AlertSvc == nil || p.AuditSvc == nil || p.Cascade == nil {
		return nil, ErrInvalidConfig
	}
	sweeperMetrics := p.Metrics
	if sweeperMetrics == nil {
		sweeperMetrics = metrics.Sweeper()
	}
	return &Sweeper{
		db:            p.DB,
		log:           p.Log.Named("escalation.sweeper").With(zap.String("component", "sweeper")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		complaints:    p.Complaints,
		users:         p.Users,
		bills:         p.Bills,
		connections:   p.Connections,
		readings:      p.Readings,
		tariff:        p.Tariff,
		complaintEng:  p.Engine.Only(rules.RuleComplaintEscalated),
		paymentEng:    p.Engine.Only(rules.RulePaymentOverdue),
		readingDueEng: p.Engine.Only(rules.RuleMeterReadingDue),
		alertSvc:      p.AlertSvc,
		auditSvc:      p.AuditSvc,
		cascade:       p.Cascade,
		metrics:       sweeperMetrics,
	}, nil
}

func (s *Sweeper) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, auditcontext.ActorSystem, "sweeper")
	ctx, span := tracing.Start(ctx, "sweeper."+name, attribute.String("job", name))
	defer func() { tracing.End(span, err) }()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err = fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job in order and joins their errors.
func (s *Sweeper) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobEscalateComplaints, s.EscalateComplaintsJob},
		{JobSuspendDelinquent, s.SuspendDelinquentJob},
		{JobMarkOverdueBills, s.MarkOverdueBillsJob},
		{JobPaymentOverdueAlerts, s.PaymentOverdueAlertsJob},
		{JobReadingDueAlerts, s.ReadingDueAlertsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweeper run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// EscalateComplaintsJob escalates Open complaints older than seven days and
// raises a Complaint Escalated alert for each.
func (s *Sweeper) EscalateComplaintsJob(ctx context.Context) error {
	open, err := s.complaints.ListByStatus(ctx, s.db.WithContext(ctx), complaintdomain.StatusOpen)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	run := jobRunFromContext(ctx)

	var (
		jobErr    error
		escalated int
		raised    []alertdomain.Alert
	)
	for _, complaint := range SweepEscalations(open, now) {
		var (
			changed bool
			created []alertdomain.Alert
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.complaints.UpdateStatus(ctx, tx, complaint.ID, complaintdomain.StatusOpen, complaintdomain.StatusEscalated, nil, now)
			if err != nil || !ok {
				return err
			}
			changed = true
			if _, err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
				Action:     auditdomain.ActionComplaintEscalated,
				TargetType: auditdomain.TargetComplaint,
				TargetID:   complaint.ID.String(),
				Detail: fmt.Sprintf("complaint %s escalated after %d days open",
					complaint.ID, calculator.ElapsedDays(complaint.Date, now)),
				Metadata: map[string]any{
					"from":     string(complaintdomain.StatusOpen),
					"to":       string(complaintdomain.StatusEscalated),
					"filed_at": complaint.Date,
				},
			}); err != nil {
				return err
			}
			created, err = s.raise(ctx, tx, s.complaintEng, rules.ComplaintAge{Complaint: complaint})
			return err
		})
		if err != nil {
			s.logItemError(ctx, "escalate complaint failed", err, zap.String("complaint_id", complaint.ID.String()))
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if changed {
			escalated++
		}
		raised = append(raised, created...)
	}

	run.AddProcessed(escalated)
	s.metrics.AddTransitions("complaint", string(complaintdomain.StatusOpen), string(complaintdomain.StatusEscalated), escalated)
	s.published(ctx, JobEscalateComplaints, raised)
	return jobErr
}

// SuspendDelinquentJob suspends Active users carrying more than two unpaid
// bills.
func (s *Sweeper) SuspendDelinquentJob(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	active, err := s.users.List(ctx, db, customerdomain.UserStatusActive)
	if err != nil {
		return err
	}
	counts, err := s.bills.CountUnpaidByUser(ctx, db)
	if err != nil {
		return err
	}
	users := make([]customerdomain.User, 0, len(active))
	for _, u := range active {
		users = append(users, *u)
	}
	now := s.clock.Now()
	run := jobRunFromContext(ctx)

	var (
		jobErr    error
		suspended int
	)
	for _, user := range SuspendDelinquent(users, counts) {
		changed := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.users.Suspend(ctx, tx, user.ID, now)
			if err != nil || !ok {
				return err
			}
			changed = true
			_, err = s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
				Action:     auditdomain.ActionUserSuspended,
				TargetType: auditdomain.TargetUser,
				TargetID:   user.ID.String(),
				Detail:     fmt.Sprintf("user %s suspended with %d unpaid bills", user.ID, counts[user.ID]),
				Metadata: map[string]any{
					"unpaid_bills": counts[user.ID],
				},
			})
			return err
		})
		if err != nil {
			s.logItemError(ctx, "suspend user failed", err, zap.String("user_id", user.ID.String()))
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if changed {
			suspended++
		}
	}

	run.AddProcessed(suspended)
	s.metrics.AddTransitions("user", string(customerdomain.UserStatusActive), string(customerdomain.UserStatusSuspended), suspended)
	return jobErr
}

// MarkOverdueBillsJob moves Unpaid bills past the overdue threshold to Overdue
// through the cascade, which raises their Payment Overdue alerts.
func (s *Sweeper) MarkOverdueBillsJob(ctx context.Context) error {
	unpaid, err := s.bills.ListByStatus(ctx, s.db.WithContext(ctx), billingdomain.PaymentStatusUnpaid)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	tariff := s.tariff.Tariff()
	run := jobRunFromContext(ctx)

	var (
		jobErr error
		marked int
		alerts int
	)
	for _, bill := range unpaid {
		if !tariff.IsOverdue(bill.BillDate, bill.PaymentStatus, now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		result, err := s.cascade.ChangeBillStatus(ctx, cascade.ChangeStatusRequest{
			BillID: bill.ID,
			Status: billingdomain.PaymentStatusOverdue,
		})
		if errors.Is(err, billingdomain.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			s.logItemError(ctx, "mark bill overdue failed", err, zap.String("bill_id", bill.ID.String()))
			jobErr = errors.Join(jobErr, err)
			continue
		}
		marked++
		alerts += len(result.Alerts)
	}

	run.AddProcessed(marked)
	s.metrics.AddTransitions("bill", string(billingdomain.PaymentStatusUnpaid), string(billingdomain.PaymentStatusOverdue), marked)
	s.metrics.AddAlertsRaised(JobMarkOverdueBills, alertdomain.TypePaymentOverdue.Code(), alerts)
	return jobErr
}

// PaymentOverdueAlertsJob raises one Payment Overdue alert per open bill older
// than fifteen days.
func (s *Sweeper) PaymentOverdueAlertsJob(ctx context.Context) error {
	open, err := s.bills.ListByStatus(ctx, s.db.WithContext(ctx), billingdomain.PaymentStatusUnpaid, billingdomain.PaymentStatusOverdue)
	if err != nil {
		return err
	}
	events := make([]rules.Event, 0, len(open))
	for _, bill := range open {
		events = append(events, rules.BillStatusChanged{Bill: bill, From: bill.PaymentStatus})
	}
	return s.raiseAll(ctx, JobPaymentOverdueAlerts, s.paymentEng, events)
}

// ReadingDueAlertsJob raises one Meter Reading Due alert per active connection
// not read within the configured number of days.
func (s *Sweeper) ReadingDueAlertsJob(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	conns, err := s.connections.ListActive(ctx, db)
	if err != nil {
		return err
	}
	events := make([]rules.Event, 0, len(conns))
	for _, conn := range conns {
		latest, err := s.readings.Latest(ctx, db, conn.ID)
		if err != nil {
			return err
		}
		events = append(events, rules.ReadingCheck{
			ConnectionID:  conn.ID,
			UserID:        conn.UserID,
			MeterNumber:   conn.MeterNumber,
			Latest:        latest,
			DaysThreshold: s.cfg.ReadingDueDays,
		})
	}
	return s.raiseAll(ctx, JobReadingDueAlerts, s.readingDueEng, events)
}

// raiseAll evaluates events and stores the resulting alerts in one
// transaction. Drafts that match an Active alert are skipped.
func (s *Sweeper) raiseAll(ctx context.Context, job string, engine *rules.Engine, events []rules.Event) error {
	var drafts []alertdomain.Alert
	for _, event := range events {
		raised, failures := engine.Evaluate(ctx, event)
		for _, failure := range failures {
			s.logItemError(ctx, "alert rule failed", failure, zap.String("rule", failure.Rule))
		}
		drafts = append(drafts, raised...)
	}
	if len(drafts) == 0 {
		return nil
	}

	var result alertdomain.PersistResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.alertSvc.PersistTx(ctx, tx, drafts)
		return err
	})
	if err != nil {
		return err
	}
	for _, failure := range result.Failed {
		s.logItemError(ctx, "persist alert failed", failure)
	}
	jobRunFromContext(ctx).AddProcessed(len(result.Created))
	s.published(ctx, job, result.Created)
	return nil
}

func (s *Sweeper) raise(ctx context.Context, tx *gorm.DB, engine *rules.Engine, event rules.Event) ([]alertdomain.Alert, error) {
	drafts, failures := engine.Evaluate(ctx, event)
	for _, failure := range failures {
		s.logItemError(ctx, "alert rule failed", failure, zap.String("rule", failure.Rule))
	}
	if len(drafts) == 0 {
		return nil, nil
	}
	result, err := s.alertSvc.PersistTx(ctx, tx, drafts)
	if err != nil {
		return nil, err
	}
	for _, failure := range result.Failed {
		s.logItemError(ctx, "persist alert failed", failure)
	}
	return result.Created, nil
}

func (s *Sweeper) published(ctx context.Context, job string, alerts []alertdomain.Alert) {
	if len(alerts) == 0 {
		return
	}
	byType := make(map[string]int)
	for _, alert := range alerts {
		byType[alert.Type.Code()]++
	}
	for code, count := range byType {
		s.metrics.AddAlertsRaised(job, code, count)
	}
	s.alertSvc.Published(ctx, alerts)
}
