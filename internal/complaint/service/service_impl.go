package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/clock"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
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
	Repo     complaintdomain.Repository
	UserRepo customerdomain.Repository
	AuditSvc auditdomain.Service
	Authz    authorization.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     complaintdomain.Repository
	userRepo customerdomain.Repository
	auditSvc auditdomain.Service
	authz    authorization.Service
}

func New(p Params) complaintdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("complaint.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		auditSvc: p.AuditSvc,
		authz:    p.Authz,
	}
}

func (s *Service) File(ctx context.Context, req complaintdomain.FileRequest) (*complaintdomain.Complaint, error) {
	if err := s.authorize(ctx, authorization.ActionComplaintFile); err != nil {
		return nil, err
	}
	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return nil, complaintdomain.ErrInvalidUser
	}
	complaintType := strings.TrimSpace(req.Type)
	if complaintType == "" {
		return nil, complaintdomain.ErrInvalidType
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, complaintdomain.ErrInvalidDescription
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, complaintdomain.ErrUserNotFound
	}

	now := s.clock.Now()
	complaint := &complaintdomain.Complaint{
		ID:          s.genID.Generate(),
		UserID:      userID,
		Type:        complaintType,
		Description: description,
		Status:      complaintdomain.StatusOpen,
		Date:        now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, complaint); err != nil {
			return err
		}
		_, err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionComplaintFiled,
			TargetType: auditdomain.TargetComplaint,
			TargetID:   complaint.ID.String(),
			Detail:     fmt.Sprintf("complaint %q filed by user %s", complaintType, userID),
			Metadata: map[string]any{
				"user_id": userID.String(),
				"type":    complaintType,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return complaint, nil
}

func (s *Service) Get(ctx context.Context, id string) (*complaintdomain.Complaint, error) {
	complaintID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	complaint, err := s.repo.FindByID(ctx, s.db, complaintID)
	if err != nil {
		return nil, err
	}
	if complaint == nil {
		return nil, complaintdomain.ErrNotFound
	}
	return complaint, nil
}

func (s *Service) Transition(ctx context.Context, req complaintdomain.TransitionRequest) (*complaintdomain.Complaint, error) {
	if err := s.authorize(ctx, authorization.ActionComplaintTransition); err != nil {
		return nil, err
	}
	complaintID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	to, err := complaintdomain.ParseStatus(strings.TrimSpace(req.Status))
	if err != nil {
		return nil, err
	}
	if to == complaintdomain.StatusEscalated || to == complaintdomain.StatusOpen {
		return nil, complaintdomain.ErrInvalidTransition
	}
	var response *string
	if req.Response != nil {
		trimmed := strings.TrimSpace(*req.Response)
		if trimmed != "" {
			response = &trimmed
		}
	}

	var updated *complaintdomain.Complaint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		if current == nil {
			return complaintdomain.ErrNotFound
		}
		if !complaintdomain.CanTransition(current.Status, to) {
			return complaintdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		changed, err := s.repo.UpdateStatus(ctx, tx, complaintID, current.Status, to, response, now)
		if err != nil {
			return err
		}
		if !changed {
			// status moved underneath us, e.g. a concurrent escalation sweep
			return complaintdomain.ErrInvalidTransition
		}

		metadata := map[string]any{
			"from": string(current.Status),
			"to":   string(to),
		}
		if response != nil {
			metadata["response"] = *response
		}
		if _, err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionComplaintStatusChanged,
			TargetType: auditdomain.TargetComplaint,
			TargetID:   complaintID.String(),
			Detail:     fmt.Sprintf("complaint %s moved from %s to %s", complaintID, current.Status, to),
			Metadata:   metadata,
		}); err != nil {
			return err
		}

		current.Status = to
		current.UpdatedAt = now
		if response != nil {
			current.Response = response
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) authorize(ctx context.Context, action string) error {
	if s.authz == nil {
		return nil
	}
	return s.authz.Authorize(ctx, authorization.ObjectComplaint, action)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, complaintdomain.ErrInvalidID
	}
	return id, nil
}
