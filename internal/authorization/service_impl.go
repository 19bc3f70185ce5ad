package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/auditcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectUser       = "user"
	ObjectConnection = "connection"
	ObjectReading    = "meter_reading"
	ObjectBill       = "bill"
	ObjectAlert      = "alert"
	ObjectComplaint  = "complaint"
	ObjectAuditLog   = "audit_log"
)

const (
	ActionUserRegister = "user.register"

	ActionConnectionRegister = "connection.register"
	ActionConnectionDelete   = "connection.delete"

	ActionReadingSubmit = "meter_reading.submit"

	ActionBillChangeStatus = "bill.change_status"
	ActionBillPay          = "bill.pay"

	ActionAlertRaise   = "alert.raise"
	ActionAlertResolve = "alert.resolve"

	ActionComplaintFile       = "complaint.file"
	ActionComplaintTransition = "complaint.transition"

	ActionAuditLogView = "audit_log.view"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
	RoleSupport = "support"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	actorType, actorID := auditcontext.ActorFromContext(ctx)
	subject, err := subjectFor(actorType, actorID)
	if err != nil {
		s.auditDenied(ctx, object, action, "invalid_actor")
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, object, action, "forbidden")
		return ErrForbidden
	}
	return nil
}

// AssignRole sets the single role of an operator, replacing any previous one.
func (s *ServiceImpl) AssignRole(ctx context.Context, operatorID string, role string) error {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return ErrInvalidActor
	}
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case RoleAdmin, RoleCashier, RoleSupport:
	default:
		return ErrInvalidRole
	}
	return s.ensureGrouping(fmt.Sprintf("operator:%s", operatorID), fmt.Sprintf("role:%s", role))
}

func subjectFor(actorType, actorID string) (string, error) {
	switch actorType {
	case auditcontext.ActorSystem:
		return "role:system", nil
	case auditcontext.ActorMeter:
		return "role:meter", nil
	case auditcontext.ActorOperator:
		if strings.TrimSpace(actorID) == "" {
			return "", ErrInvalidActor
		}
		return fmt.Sprintf("operator:%s", strings.TrimSpace(actorID)), nil
	default:
		return "", ErrInvalidActor
	}
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, object string, action string, reason string) {
	if s.auditSvc == nil {
		return
	}
	if _, err := s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     "authorization.denied",
		TargetType: object,
		Detail:     fmt.Sprintf("denied %s on %s", action, object),
		Metadata: map[string]any{
			"object": object,
			"action": action,
			"reason": reason,
		},
	}); err != nil {
		s.log.Warn("failed to audit denial", zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Support desk
		{"role:support", ObjectAlert, ActionAlertResolve},
		{"role:support", ObjectAlert, ActionAlertRaise},
		{"role:support", ObjectComplaint, ActionComplaintFile},
		{"role:support", ObjectComplaint, ActionComplaintTransition},

		// Cashier
		{"role:cashier", ObjectBill, ActionBillPay},
		{"role:cashier", ObjectReading, ActionReadingSubmit},

		// Admin
		{"role:admin", ObjectUser, ActionUserRegister},
		{"role:admin", ObjectConnection, ActionConnectionRegister},
		{"role:admin", ObjectConnection, ActionConnectionDelete},
		{"role:admin", ObjectReading, ActionReadingSubmit},
		{"role:admin", ObjectBill, ActionBillPay},
		{"role:admin", ObjectBill, ActionBillChangeStatus},
		{"role:admin", ObjectAlert, ActionAlertRaise},
		{"role:admin", ObjectAlert, ActionAlertResolve},
		{"role:admin", ObjectComplaint, ActionComplaintFile},
		{"role:admin", ObjectComplaint, ActionComplaintTransition},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		// Smart meters only submit readings
		{"role:meter", ObjectReading, ActionReadingSubmit},

		// System (sweeper, ingestion pipeline)
		{"role:system", ObjectUser, ActionUserRegister},
		{"role:system", ObjectConnection, ActionConnectionRegister},
		{"role:system", ObjectReading, ActionReadingSubmit},
		{"role:system", ObjectBill, ActionBillChangeStatus},
		{"role:system", ObjectBill, ActionBillPay},
		{"role:system", ObjectAlert, ActionAlertRaise},
		{"role:system", ObjectComplaint, ActionComplaintFile},
		{"role:system", ObjectComplaint, ActionComplaintTransition},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
