package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActorType represents who triggered an action.
type ActorType string

const (
	ActorTypeSystem   ActorType = "system"
	ActorTypeOperator ActorType = "operator"
	ActorTypeMeter    ActorType = "meter"
)

// AuditLog is an immutable record of one committed mutation.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActorType  string            `json:"actor_type" gorm:"type:text;not null"`
	ActorID    *string           `json:"actor_id,omitempty" gorm:"type:text"`
	Action     string            `json:"action" gorm:"type:text;not null;index"`
	TargetType string            `json:"target_type" gorm:"type:text;not null;index:idx_audit_logs_target,priority:1"`
	TargetID   *string           `json:"target_id,omitempty" gorm:"type:text;index:idx_audit_logs_target,priority:2"`
	Detail     string            `json:"detail" gorm:"type:text;not null"`
	Metadata   datatypes.JSONMap `json:"metadata" gorm:"not null"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;index"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// Actions recorded by the engine.
const (
	ActionUserRegistered         = "user.registered"
	ActionUserSuspended          = "user.suspended"
	ActionConnectionRegistered   = "connection.registered"
	ActionConnectionDeleted      = "connection.deleted"
	ActionReadingAccepted        = "reading.accepted"
	ActionBillCreated            = "bill.created"
	ActionBillStatusChanged      = "bill.status_changed"
	ActionBillPaid               = "bill.paid"
	ActionAlertRaised            = "alert.raised"
	ActionAlertResolved          = "alert.resolved"
	ActionComplaintFiled         = "complaint.filed"
	ActionComplaintEscalated     = "complaint.escalated"
	ActionComplaintStatusChanged = "complaint.status_changed"
)

// Target types.
const (
	TargetUser       = "user"
	TargetConnection = "connection"
	TargetReading    = "meter_reading"
	TargetBill       = "bill"
	TargetAlert      = "alert"
	TargetComplaint  = "complaint"
)
