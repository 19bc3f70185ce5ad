package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/observability/metrics"
	"github.com/smallbiznis/tirta/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxListLimit = 500

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     alertdomain.Repository
	AuditSvc auditdomain.Service
	Authz    authorization.Service `optional:"true"`
	Metrics  *metrics.Metrics      `optional:"true"`
	Notifier alertdomain.Notifier  `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     alertdomain.Repository
	auditSvc auditdomain.Service
	authz    authorization.Service
	metrics  *metrics.Metrics
	notifier alertdomain.Notifier
}

func New(p Params) alertdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("alert.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		authz:    p.Authz,
		metrics:  p.Metrics,
		notifier: p.Notifier,
	}
}

func (s *Service) Raise(ctx context.Context, req alertdomain.RaiseRequest) (*alertdomain.Alert, error) {
	if err := s.authorize(ctx, authorization.ActionAlertRaise); err != nil {
		return nil, err
	}
	alertType, err := alertdomain.ParseAlertType(strings.TrimSpace(req.Type))
	if err != nil {
		return nil, err
	}
	severity, err := alertdomain.ParseSeverity(strings.TrimSpace(req.Severity))
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, alertdomain.ErrInvalidMessage
	}
	var userID *snowflake.ID
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return nil, alertdomain.ErrInvalidUser
		}
		userID = &id
	}

	alert := alertdomain.Alert{
		UserID:     userID,
		Type:       alertType,
		Message:    message,
		Severity:   severity,
		SourceType: alertdomain.SourceOperator,
	}

	var result alertdomain.PersistResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.PersistTx(ctx, tx, []alertdomain.Alert{alert})
		if err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return result.Failed[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Created) == 0 {
		return nil, alertdomain.ErrAlreadyActive
	}
	s.Published(ctx, result.Created)
	created := result.Created[0]
	return &created, nil
}

func (s *Service) Published(ctx context.Context, alerts []alertdomain.Alert) {
	if len(alerts) == 0 {
		return
	}
	for _, alert := range alerts {
		s.metrics.RecordAlertRaised(ctx, alert.Type.Code(), string(alert.Severity))
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAlerts(ctx, alerts); err != nil {
		s.log.Warn("alert notification failed", zap.Int("alerts", len(alerts)), zap.Error(err))
	}
}

func (s *Service) Resolve(ctx context.Context, id string) (*alertdomain.Alert, error) {
	if err := s.authorize(ctx, authorization.ActionAlertResolve); err != nil {
		return nil, err
	}
	alertID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || alertID == 0 {
		return nil, alertdomain.ErrInvalidID
	}

	var resolved *alertdomain.Alert
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alert, err := s.repo.FindByID(ctx, tx, alertID)
		if err != nil {
			return err
		}
		if alert == nil {
			return alertdomain.ErrNotFound
		}
		if alert.Status == alertdomain.AlertStatusResolved {
			return alertdomain.ErrAlreadyResolved
		}

		now := s.clock.Now()
		changed, err := s.repo.Resolve(ctx, tx, alertID, now)
		if err != nil {
			return err
		}
		if !changed {
			return alertdomain.ErrAlreadyResolved
		}
		if _, err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionAlertResolved,
			TargetType: auditdomain.TargetAlert,
			TargetID:   alertID.String(),
			Detail:     fmt.Sprintf("%s alert resolved by operator", alert.Type),
			Metadata: map[string]any{
				"type": string(alert.Type),
			},
		}); err != nil {
			return err
		}

		alert.Status = alertdomain.AlertStatusResolved
		alert.ResolvedAt = &now
		resolved = alert
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAlertsResolved(ctx, resolved.Type.Code(), 1)
	return resolved, nil
}

func (s *Service) List(ctx context.Context, req alertdomain.ListRequest) ([]alertdomain.Alert, error) {
	filter := alertdomain.ListFilter{Limit: req.Limit}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return nil, alertdomain.ErrInvalidUser
		}
		filter.UserID = &id
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		switch alertdomain.AlertStatus(raw) {
		case alertdomain.AlertStatusActive, alertdomain.AlertStatusResolved:
			filter.Status = alertdomain.AlertStatus(raw)
		default:
			return nil, alertdomain.ErrInvalidStatus
		}
	}
	if raw := strings.TrimSpace(req.Type); raw != "" {
		alertType, err := alertdomain.ParseAlertType(raw)
		if err != nil {
			return nil, err
		}
		filter.Type = alertType
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) PersistTx(ctx context.Context, tx *gorm.DB, drafts []alertdomain.Alert) (alertdomain.PersistResult, error) {
	var result alertdomain.PersistResult
	now := s.clock.Now()

	for _, draft := range drafts {
		alert := draft
		alert.ID = s.genID.Generate()
		alert.Status = alertdomain.AlertStatusActive
		alert.Priority = alertdomain.Priority(alert.Severity, alert.Type)
		alert.CreatedAt = now
		alert.ResolvedAt = nil

		var (
			skipped bool
			entry   *auditdomain.AuditLog
		)
		err := tx.Transaction(func(sp *gorm.DB) error {
			if alert.SourceID != nil {
				existing, err := s.repo.FindActiveBySource(ctx, sp, alert.Type, alert.SourceType, *alert.SourceID)
				if err != nil {
					return err
				}
				if existing != nil {
					skipped = true
					return nil
				}
			}
			if err := s.repo.Insert(ctx, sp, &alert); err != nil {
				return err
			}
			logged, err := s.auditSvc.RecordTx(ctx, sp, auditdomain.Entry{
				Action:     auditdomain.ActionAlertRaised,
				TargetType: auditdomain.TargetAlert,
				TargetID:   alert.ID.String(),
				Detail:     alert.Message,
				Metadata:   alertMetadata(alert),
			})
			entry = logged
			return err
		})
		switch {
		case err != nil && db.IsDuplicateKeyErr(err):
			result.Skipped = append(result.Skipped, alert)
		case err != nil:
			s.log.Warn("failed to persist alert",
				zap.String("type", string(alert.Type)),
				zap.String("source_type", alert.SourceType),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, fmt.Errorf("persist %s alert: %w", alert.Type, err))
		case skipped:
			result.Skipped = append(result.Skipped, alert)
		default:
			result.Created = append(result.Created, alert)
			if entry != nil {
				result.AuditEntries = append(result.AuditEntries, *entry)
			}
		}
	}
	return result, nil
}

func (s *Service) ResolvePaymentOverdueTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) ([]snowflake.ID, error) {
	return s.repo.ResolveActiveByUserAndType(ctx, tx, userID, alertdomain.TypePaymentOverdue, s.clock.Now())
}

func (s *Service) authorize(ctx context.Context, action string) error {
	if s.authz == nil {
		return nil
	}
	return s.authz.Authorize(ctx, authorization.ObjectAlert, action)
}

func alertMetadata(alert alertdomain.Alert) map[string]any {
	metadata := map[string]any{
		"type":        string(alert.Type),
		"severity":    string(alert.Severity),
		"priority":    alert.Priority,
		"source_type": alert.SourceType,
	}
	if alert.SourceID != nil {
		metadata["source_id"] = alert.SourceID.String()
	}
	if alert.UserID != nil {
		metadata["user_id"] = alert.UserID.String()
	}
	return metadata
}
