package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"github.com/smallbiznis/tirta/pkg/errs"
	"gorm.io/gorm"
)

// Entry describes one mutation to record. The actor is taken from the context.
type Entry struct {
	Action     string
	TargetType string
	TargetID   string
	Detail     string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record appends entry in its own statement.
	Record(ctx context.Context, entry Entry) (*AuditLog, error)
	// RecordTx appends entry inside tx so it commits or rolls back with the mutation.
	RecordTx(ctx context.Context, tx *gorm.DB, entry Entry) (*AuditLog, error)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = errs.Validation("invalid_page_token")
	ErrInvalidTimeRange = errs.Validation("invalid_time_range")
	ErrInvalidAction    = errs.Validation("invalid_action")
)
