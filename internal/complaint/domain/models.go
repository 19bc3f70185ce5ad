package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusEscalated  Status = "Escalated"
)

// EscalateAfter is the age past which an Open complaint escalates.
const EscalateAfter = 7 * 24 * time.Hour

type Complaint struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID      snowflake.ID `json:"user_id" gorm:"not null;index"`
	Type        string       `json:"type" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Status      Status       `json:"status" gorm:"type:text;not null;index"`
	Response    *string      `json:"response,omitempty" gorm:"type:text"`
	Date        time.Time    `json:"date" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Complaint) TableName() string { return "complaints" }

func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusOpen, StatusInProgress, StatusResolved, StatusEscalated:
		return Status(value), nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransition covers operator moves: Open or Escalated to In Progress, and
// In Progress to Resolved. Escalation is handled by the sweeper.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusInProgress:
		return from == StatusOpen || from == StatusEscalated
	case StatusResolved:
		return from == StatusInProgress
	case StatusEscalated:
		return from == StatusOpen
	default:
		return false
	}
}

// ShouldEscalate reports whether c is Open and older than EscalateAfter.
func (c Complaint) ShouldEscalate(now time.Time) bool {
	return c.Status == StatusOpen && now.Sub(c.Date) > EscalateAfter
}
