package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billing/calculator"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   billingdomain.Repository
	Tariff calculator.Provider
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	repo   billingdomain.Repository
	tariff calculator.Provider
}

func New(p Params) billingdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("billing.service"),
		clock:  p.Clock,
		repo:   p.Repo,
		tariff: p.Tariff,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*billingdomain.Bill, error) {
	billID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	bill, err := s.repo.FindByID(ctx, s.db, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billingdomain.ErrNotFound
	}
	return bill, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]billingdomain.Bill, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, s.db, id)
}

func (s *Service) Outstanding(ctx context.Context, userID string) (decimal.Decimal, error) {
	bills, err := s.ListByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.tariff.Tariff().Outstanding(bills, s.clock.Now()), nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, billingdomain.ErrInvalidID
	}
	return id, nil
}
