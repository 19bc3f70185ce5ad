package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ConnectionStatus string

const (
	ConnectionStatusActive    ConnectionStatus = "Active"
	ConnectionStatusInactive  ConnectionStatus = "Inactive"
	ConnectionStatusSuspended ConnectionStatus = "Suspended"
)

// Connection links a user to one water meter.
type Connection struct {
	ID          snowflake.ID     `json:"id" gorm:"primaryKey"`
	UserID      snowflake.ID     `json:"user_id" gorm:"not null;index"`
	MeterNumber string           `json:"meter_number" gorm:"type:text;not null;uniqueIndex:ux_connections_meter_number,where:deleted_at IS NULL"`
	Status      ConnectionStatus `json:"status" gorm:"type:text;not null"`
	CreatedAt   time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"not null"`
	DeletedAt   gorm.DeletedAt   `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName sets the database table name.
func (Connection) TableName() string { return "connections" }

var meterNumberPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{6}$`)

// NormalizeMeterNumber upper-cases and validates a meter number of two letters
// followed by six digits.
func NormalizeMeterNumber(raw string) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if !meterNumberPattern.MatchString(value) {
		return "", ErrInvalidMeterNumber
	}
	return value, nil
}
