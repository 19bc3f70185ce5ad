package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/clock"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	"github.com/smallbiznis/tirta/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     connectiondomain.Repository
	UserRepo customerdomain.Repository
	AuditSvc auditdomain.Service
	Authz    authorization.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     connectiondomain.Repository
	userRepo customerdomain.Repository
	auditSvc auditdomain.Service
	authz    authorization.Service
}

func New(p Params) connectiondomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("connection.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		auditSvc: p.AuditSvc,
		authz:    p.Authz,
	}
}

func (s *Service) Register(ctx context.Context, req connectiondomain.RegisterRequest) (*connectiondomain.Response, error) {
	if err := s.authorize(ctx, authorization.ActionConnectionRegister); err != nil {
		return nil, err
	}

	userID, err := connectiondomain.ParseID(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return nil, connectiondomain.ErrInvalidUser
	}
	meterNumber, err := connectiondomain.NormalizeMeterNumber(req.MeterNumber)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, connectiondomain.ErrUserNotFound
	}

	existing, err := s.repo.FindByMeterNumber(ctx, s.db, meterNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, connectiondomain.ErrDuplicateMeter
	}

	now := s.clock.Now()
	conn := &connectiondomain.Connection{
		ID:          s.genID.Generate(),
		UserID:      userID,
		MeterNumber: meterNumber,
		Status:      connectiondomain.ConnectionStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, conn); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return connectiondomain.ErrDuplicateMeter.Wrap(err)
			}
			return err
		}
		_, err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionConnectionRegistered,
			TargetType: auditdomain.TargetConnection,
			TargetID:   conn.ID.String(),
			Detail:     fmt.Sprintf("registered meter %s for user %s", meterNumber, userID),
			Metadata: map[string]any{
				"user_id":      userID.String(),
				"meter_number": meterNumber,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return toResponse(conn), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*connectiondomain.Response, error) {
	connID, err := connectiondomain.ParseID(strings.TrimSpace(id))
	if err != nil || connID == 0 {
		return nil, connectiondomain.ErrInvalidID
	}
	conn, err := s.repo.FindByID(ctx, s.db, connID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, connectiondomain.ErrNotFound
	}
	return toResponse(conn), nil
}

func (s *Service) GetByMeterNumber(ctx context.Context, meterNumber string) (*connectiondomain.Response, error) {
	normalized, err := connectiondomain.NormalizeMeterNumber(meterNumber)
	if err != nil {
		return nil, err
	}
	conn, err := s.repo.FindByMeterNumber(ctx, s.db, normalized)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, connectiondomain.ErrNotFound
	}
	return toResponse(conn), nil
}

// Delete soft-deletes the connection, releasing its meter number for reuse.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.authorize(ctx, authorization.ActionConnectionDelete); err != nil {
		return err
	}
	connID, err := connectiondomain.ParseID(strings.TrimSpace(id))
	if err != nil || connID == 0 {
		return connectiondomain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.repo.SoftDelete(ctx, tx, connID, s.clock.Now())
		if err != nil {
			return err
		}
		if !deleted {
			return connectiondomain.ErrNotFound
		}
		_, err = s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionConnectionDeleted,
			TargetType: auditdomain.TargetConnection,
			TargetID:   connID.String(),
			Detail:     fmt.Sprintf("deleted connection %s", connID),
		})
		return err
	})
}

func (s *Service) authorize(ctx context.Context, action string) error {
	if s.authz == nil {
		return nil
	}
	return s.authz.Authorize(ctx, authorization.ObjectConnection, action)
}

func toResponse(conn *connectiondomain.Connection) *connectiondomain.Response {
	return &connectiondomain.Response{
		ID:          conn.ID.String(),
		UserID:      conn.UserID.String(),
		MeterNumber: conn.MeterNumber,
		Status:      string(conn.Status),
		CreatedAt:   conn.CreatedAt,
	}
}
