package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MeterReading is one accepted reading. Readings are never updated once stored.
type MeterReading struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ConnectionID  snowflake.ID `json:"connection_id" gorm:"not null;index:idx_meter_readings_connection_date,priority:1"`
	ReadingDate   time.Time    `json:"reading_date" gorm:"not null;index:idx_meter_readings_connection_date,priority:2"`
	UnitsConsumed float64      `json:"units_consumed" gorm:"not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (MeterReading) TableName() string { return "meter_readings" }

// Source values for NewReading.
const (
	SourceOperator = "operator"
	SourceMQTT     = "mqtt"
)

// NewReading is a reading submitted for acceptance. UnitsConsumed is nil when
// the submitter did not provide a value. ID is set by submitters that retry the
// same reading; zero asks for a fresh id.
type NewReading struct {
	ID            snowflake.ID
	ConnectionID  snowflake.ID
	ReadingDate   time.Time
	UnitsConsumed *float64
	Source        string
}

// Units returns the submitted units or 0 when absent.
func (r NewReading) Units() float64 {
	if r.UnitsConsumed == nil {
		return 0
	}
	return *r.UnitsConsumed
}
