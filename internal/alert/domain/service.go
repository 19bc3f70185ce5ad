package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"gorm.io/gorm"
)

type Service interface {
	// Raise stores an operator-created alert.
	Raise(ctx context.Context, req RaiseRequest) (*Alert, error)
	Resolve(ctx context.Context, id string) (*Alert, error)
	List(ctx context.Context, req ListRequest) ([]Alert, error)

	// PersistTx stores rule output inside tx. Each draft is written in its own
	// savepoint; drafts already Active for the same type and source are skipped.
	PersistTx(ctx context.Context, tx *gorm.DB, drafts []Alert) (PersistResult, error)
	// ResolvePaymentOverdueTx resolves the user's Active Payment Overdue alerts.
	ResolvePaymentOverdueTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) ([]snowflake.ID, error)
	// Published counts and notifies alerts once their transaction committed.
	Published(ctx context.Context, alerts []Alert)
}

type RaiseRequest struct {
	UserID   string `json:"user_id,omitempty"`
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type ListRequest struct {
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type PersistResult struct {
	Created []Alert
	// Skipped holds drafts that matched an Active alert.
	Skipped []Alert
	// Failed holds one error per draft that could not be stored.
	Failed []error
	// AuditEntries holds the audit row written for each created alert.
	AuditEntries []auditdomain.AuditLog
}

// Notifier delivers alerts to an outside channel after they are committed.
type Notifier interface {
	NotifyAlerts(ctx context.Context, alerts []Alert) error
}
