package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/pkg/db"
	"github.com/smallbiznis/tirta/pkg/errs"
)

const (
	SweeperJobReasonDeadlineExceeded     = "deadline_exceeded"
	SweeperJobReasonDBLockTimeout        = "db_lock_timeout"
	SweeperJobReasonSerializationFailure = "serialization_failure"
	SweeperJobReasonUniqueViolation      = "unique_violation"
	SweeperJobReasonForbidden            = "forbidden"
	SweeperJobReasonValidation           = "validation"
	SweeperJobReasonConflict             = "conflict"
	SweeperJobReasonUnknown              = "unknown"
)

// SweeperMetrics captures escalation sweeper health and the state changes it makes.
type SweeperMetrics struct {
	jobRuns      *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobTimeouts  *prometheus.CounterVec
	jobErrors    *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	alertsRaised *prometheus.CounterVec
	runLoopLag   prometheus.Observer
}

var (
	sweeperMetricsOnce sync.Once
	sweeperMetrics     *SweeperMetrics
)

// Sweeper returns the singleton sweeper metrics registry.
func Sweeper() *SweeperMetrics {
	return SweeperWithConfig(Config{})
}

// SweeperWithConfig returns the singleton sweeper metrics registry using config labels.
func SweeperWithConfig(cfg Config) *SweeperMetrics {
	sweeperMetricsOnce.Do(func() {
		sweeperMetrics = NewSweeperMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return sweeperMetrics
}

// ResetSweeperMetricsForTest resets the sweeper metrics singleton for tests.
func ResetSweeperMetricsForTest() {
	sweeperMetricsOnce = sync.Once{}
	sweeperMetrics = nil
}

// NewSweeperMetrics registers a fresh set of sweeper collectors on registerer.
func NewSweeperMetrics(registerer prometheus.Registerer, cfg Config) *SweeperMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tirta"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_sweeper_job_runs_total",
		Help:        "Sweeper job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "tirta_sweeper_job_duration_seconds",
		Help:        "Sweeper job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_sweeper_job_timeouts_total",
		Help:        "Sweeper jobs that hit their timeout.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_sweeper_job_errors_total",
		Help:        "Sweeper job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_sweeper_transitions_total",
		Help:        "State transitions applied by the sweeper.",
		ConstLabels: constLabels,
	}, []string{"entity", "from", "to"})
	alertsRaised := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_sweeper_alerts_raised_total",
		Help:        "Alerts raised by sweeper jobs.",
		ConstLabels: constLabels,
	}, []string{"job", "alert_type"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "tirta_sweeper_runloop_lag_seconds",
		Help:        "Sweeper run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		transitions,
		alertsRaised,
		runLoopLag,
	)

	return &SweeperMetrics{
		jobRuns:      jobRuns,
		jobDuration:  jobDuration,
		jobTimeouts:  jobTimeouts,
		jobErrors:    jobErrors,
		transitions:  transitions,
		alertsRaised: alertsRaised,
		runLoopLag:   runLoopLag,
	}
}

// IncJobRun increments the run counter for a sweeper job.
func (m *SweeperMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records sweeper job latency in seconds.
func (m *SweeperMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SweeperMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the sweeper job error counter with classification.
func (m *SweeperMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySweeperJobReason(err)).Inc()
}

// AddTransitions counts entities moved from one status to another.
func (m *SweeperMetrics) AddTransitions(entity, from, to string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.transitions.WithLabelValues(entity, from, to).Add(float64(count))
}

func (m *SweeperMetrics) AddAlertsRaised(job, alertType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.alertsRaised.WithLabelValues(job, alertType).Add(float64(count))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SweeperMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	lag := duration
	if lag < 0 {
		lag = 0
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// ClassifySweeperJobReason maps sweeper job errors to low-cardinality reasons.
func ClassifySweeperJobReason(err error) string {
	switch {
	case err == nil:
		return SweeperJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return SweeperJobReasonDeadlineExceeded
	case errors.Is(err, authorization.ErrForbidden):
		return SweeperJobReasonForbidden
	case hasPGCode(err, "55P03"):
		return SweeperJobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return SweeperJobReasonSerializationFailure
	case db.IsDuplicateKeyErr(err):
		return SweeperJobReasonUniqueViolation
	case errors.Is(err, errs.ErrValidation):
		return SweeperJobReasonValidation
	case errors.Is(err, errs.ErrConflict):
		return SweeperJobReasonConflict
	default:
		return SweeperJobReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
