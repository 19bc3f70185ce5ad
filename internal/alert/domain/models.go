package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
)

type AlertType string

const (
	TypeHighConsumption    AlertType = "High Consumption"
	TypePaymentOverdue     AlertType = "Payment Overdue"
	TypeLeakDetection      AlertType = "Leak Detection"
	TypeWaterQuality       AlertType = "Water Quality"
	TypeMeterReadingDue    AlertType = "Meter Reading Due"
	TypeSystemMaintenance  AlertType = "System Maintenance"
	TypeComplaintEscalated AlertType = "Complaint Escalated"
)

// Code is the slug form used for metric labels and policy objects,
// e.g. "payment-overdue".
func (t AlertType) Code() string {
	return slug.Make(string(t))
}

func ParseAlertType(value string) (AlertType, error) {
	for _, t := range []AlertType{
		TypeHighConsumption,
		TypePaymentOverdue,
		TypeLeakDetection,
		TypeWaterQuality,
		TypeMeterReadingDue,
		TypeSystemMaintenance,
		TypeComplaintEscalated,
	} {
		if value == string(t) || value == t.Code() {
			return t, nil
		}
	}
	return "", ErrInvalidType
}

type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

func ParseSeverity(value string) (Severity, error) {
	switch Severity(value) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(value), nil
	default:
		return "", ErrInvalidSeverity
	}
}

type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "Active"
	AlertStatusResolved AlertStatus = "Resolved"
)

// Source types referenced by SourceType.
const (
	SourceReading       = "meter_reading"
	SourceBill          = "bill"
	SourceComplaint     = "complaint"
	SourceConnection    = "connection"
	SourceQualitySample = "quality_sample"
	SourceOperator      = "operator"
)

// Alert is raised by a rule or by an operator. While Active, at most one alert
// exists per type and source.
type Alert struct {
	ID         snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID     *snowflake.ID `json:"user_id,omitempty" gorm:"index"`
	Type       AlertType     `json:"type" gorm:"type:text;not null;uniqueIndex:ux_alerts_active_source,priority:1,where:status = 'Active'"`
	Message    string        `json:"message" gorm:"type:text;not null"`
	Status     AlertStatus   `json:"status" gorm:"type:text;not null;index"`
	Severity   Severity      `json:"severity" gorm:"type:text;not null"`
	Priority   int           `json:"priority" gorm:"not null"`
	SourceType string        `json:"source_type" gorm:"type:text;not null;uniqueIndex:ux_alerts_active_source,priority:2"`
	SourceID   *snowflake.ID `json:"source_id,omitempty" gorm:"uniqueIndex:ux_alerts_active_source,priority:3"`
	CreatedAt  time.Time     `json:"created_at" gorm:"not null"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

// TableName sets the database table name.
func (Alert) TableName() string { return "alerts" }

const defaultScore = 5

var severityScores = map[Severity]int{
	SeverityCritical: 10,
	SeverityHigh:     8,
	SeverityMedium:   5,
	SeverityLow:      2,
}

var typeScores = map[AlertType]int{
	TypeWaterQuality:      10,
	TypeLeakDetection:     9,
	TypeHighConsumption:   7,
	TypePaymentOverdue:    6,
	TypeSystemMaintenance: 4,
	TypeMeterReadingDue:   3,
}

// Priority ranks alerts for display. It never drives state.
func Priority(severity Severity, alertType AlertType) int {
	s, ok := severityScores[severity]
	if !ok {
		s = defaultScore
	}
	t, ok := typeScores[alertType]
	if !ok {
		t = defaultScore
	}
	return int(math.Round(float64(s+t) / 2))
}
