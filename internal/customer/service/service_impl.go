package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/clock"
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
	Repo     customerdomain.Repository
	AuditSvc auditdomain.Service
	Authz    authorization.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     customerdomain.Repository
	auditSvc auditdomain.Service
	authz    authorization.Service
}

func New(p Params) customerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("customer.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		authz:    p.Authz,
	}
}

func (s *Service) Register(ctx context.Context, req customerdomain.RegisterRequest) (*customerdomain.Response, error) {
	if s.authz != nil {
		if err := s.authz.Authorize(ctx, authorization.ObjectUser, authorization.ActionUserRegister); err != nil {
			return nil, err
		}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, customerdomain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, customerdomain.ErrInvalidEmail
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, customerdomain.ErrDuplicateUser
	}

	now := s.clock.Now()
	user := &customerdomain.User{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Status:    customerdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return customerdomain.ErrDuplicateUser.Wrap(err)
			}
			return err
		}
		_, err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionUserRegistered,
			TargetType: auditdomain.TargetUser,
			TargetID:   user.ID.String(),
			Detail:     fmt.Sprintf("registered user %s", name),
			Metadata:   map[string]any{"email": email},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return toResponse(user), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*customerdomain.Response, error) {
	userID, err := customerdomain.ParseID(strings.TrimSpace(id))
	if err != nil || userID == 0 {
		return nil, customerdomain.ErrInvalidID
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, customerdomain.ErrNotFound
	}
	return toResponse(user), nil
}

func (s *Service) List(ctx context.Context, status string) ([]customerdomain.Response, error) {
	var filter customerdomain.UserStatus
	switch strings.TrimSpace(status) {
	case "":
	case string(customerdomain.UserStatusActive):
		filter = customerdomain.UserStatusActive
	case string(customerdomain.UserStatusSuspended):
		filter = customerdomain.UserStatusSuspended
	default:
		return nil, customerdomain.ErrInvalidStatus
	}

	users, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]customerdomain.Response, 0, len(users))
	for _, user := range users {
		resp = append(resp, *toResponse(user))
	}
	return resp, nil
}

func toResponse(user *customerdomain.User) *customerdomain.Response {
	return &customerdomain.Response{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Status:    string(user.Status),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
