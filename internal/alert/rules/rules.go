package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	"github.com/smallbiznis/tirta/internal/billing/calculator"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	"github.com/smallbiznis/tirta/internal/consumption"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
)

// Rule names.
const (
	RuleHighConsumption    = "high_consumption"
	RulePaymentOverdue     = "payment_overdue"
	RuleLeakDetection      = "leak_detection"
	RuleWaterQuality       = "water_quality"
	RuleMeterReadingDue    = "meter_reading_due"
	RuleComplaintEscalated = "complaint_escalated"
)

const (
	LeakUnitsPerDay         = 50.0
	PaymentOverdueAfterDays = 15
	DefaultReadingDueDays   = 30
	qualityPHMin            = 6.5
	qualityPHMax            = 8.5
	qualityTurbidityMax     = 5.0
	qualityChlorineMin      = 0.2
	qualityChlorineMax      = 4.0
	qualityHardnessMax      = 500.0
)

var (
	ErrMissingUnits    = errors.New("reading has no units")
	ErrEmptySample     = errors.New("quality sample has no measurements")
	ErrMissingBillDate = errors.New("bill has no bill date")
)

// Rule inspects one event. Rules ignore events they do not handle.
type Rule interface {
	Name() string
	Evaluate(event Event, now time.Time) ([]alertdomain.Alert, error)
}

type highConsumption struct {
	analyzer *consumption.Analyzer
}

func (highConsumption) Name() string { return RuleHighConsumption }

func (r highConsumption) Evaluate(event Event, now time.Time) ([]alertdomain.Alert, error) {
	ev, ok := event.(NewReading)
	if !ok {
		return nil, nil
	}
	units := ev.Reading.UnitsConsumed
	if units < 0 {
		return nil, ErrMissingUnits
	}
	high := r.analyzer.IsHighConsumption(units)
	abnormal := r.analyzer.IsAbnormalConsumption(units, ev.Reading.ConnectionID, ev.Prior, now)
	if !high && !abnormal {
		return nil, nil
	}

	severity := consumptionSeverity(units)
	message := fmt.Sprintf("High water consumption of %.2f units on meter %s", units, ev.MeterNumber)
	if abnormal && !high {
		avg := r.analyzer.AverageConsumption(ev.Reading.ConnectionID, ev.Prior, 0, now)
		message = fmt.Sprintf("Abnormal water consumption of %.2f units on meter %s (average %.2f)", units, ev.MeterNumber, avg)
	}
	return []alertdomain.Alert{
		draft(alertdomain.TypeHighConsumption, severity, message, &ev.UserID, alertdomain.SourceReading, &ev.Reading.ID),
	}, nil
}

func consumptionSeverity(units float64) alertdomain.Severity {
	switch {
	case units > 200:
		return alertdomain.SeverityCritical
	case units > 150:
		return alertdomain.SeverityHigh
	case units > 100:
		return alertdomain.SeverityMedium
	default:
		return alertdomain.SeverityLow
	}
}

type paymentOverdue struct{}

func (paymentOverdue) Name() string { return RulePaymentOverdue }

func (paymentOverdue) Evaluate(event Event, now time.Time) ([]alertdomain.Alert, error) {
	ev, ok := event.(BillStatusChanged)
	if !ok {
		return nil, nil
	}
	bill := ev.Bill
	if !bill.IsOpen() {
		return nil, nil
	}
	if bill.BillDate.IsZero() {
		return nil, ErrMissingBillDate
	}
	days := calculator.OverdueDays(bill.BillDate, bill.PaymentStatus, now)
	if days <= PaymentOverdueAfterDays {
		return nil, nil
	}

	severity := alertdomain.SeverityMedium
	switch {
	case days > 60:
		severity = alertdomain.SeverityCritical
	case days > 30:
		severity = alertdomain.SeverityHigh
	}
	message := fmt.Sprintf("Bill %s of %s is %d days overdue", bill.ID, bill.Amount.StringFixed(2), days)
	return []alertdomain.Alert{
		draft(alertdomain.TypePaymentOverdue, severity, message, &bill.UserID, alertdomain.SourceBill, &bill.ID),
	}, nil
}

type leakDetection struct{}

func (leakDetection) Name() string { return RuleLeakDetection }

func (leakDetection) Evaluate(event Event, _ time.Time) ([]alertdomain.Alert, error) {
	ev, ok := event.(NewReading)
	if !ok {
		return nil, nil
	}
	previous, found := previousReading(ev.Reading, ev.Prior)
	if !found {
		return nil, nil
	}
	rate, ok := consumption.DailyRate(previous, ev.Reading)
	if !ok || rate <= LeakUnitsPerDay {
		return nil, nil
	}
	message := fmt.Sprintf("Possible leak on meter %s: %.2f units per day since %s",
		ev.MeterNumber, rate, previous.ReadingDate.Format(time.DateOnly))
	return []alertdomain.Alert{
		draft(alertdomain.TypeLeakDetection, alertdomain.SeverityHigh, message, &ev.UserID, alertdomain.SourceReading, &ev.Reading.ID),
	}, nil
}

// previousReading returns the latest reading of the same connection dated
// before current.
func previousReading(current readingdomain.MeterReading, prior []readingdomain.MeterReading) (readingdomain.MeterReading, bool) {
	var (
		best  readingdomain.MeterReading
		found bool
	)
	for _, r := range prior {
		if r.ConnectionID != current.ConnectionID || r.ID == current.ID {
			continue
		}
		if !r.ReadingDate.Before(current.ReadingDate) {
			continue
		}
		if !found || r.ReadingDate.After(best.ReadingDate) {
			best = r
			found = true
		}
	}
	return best, found
}

type waterQuality struct{}

func (waterQuality) Name() string { return RuleWaterQuality }

func (waterQuality) Evaluate(event Event, _ time.Time) ([]alertdomain.Alert, error) {
	ev, ok := event.(QualitySample)
	if !ok {
		return nil, nil
	}
	if ev.PH == nil && ev.Turbidity == nil && ev.Chlorine == nil && ev.Hardness == nil {
		return nil, ErrEmptySample
	}

	var violations []string
	if ev.PH != nil && (*ev.PH < qualityPHMin || *ev.PH > qualityPHMax) {
		violations = append(violations, fmt.Sprintf("pH %.2f", *ev.PH))
	}
	if ev.Turbidity != nil && *ev.Turbidity > qualityTurbidityMax {
		violations = append(violations, fmt.Sprintf("turbidity %.2f NTU", *ev.Turbidity))
	}
	if ev.Chlorine != nil && (*ev.Chlorine < qualityChlorineMin || *ev.Chlorine > qualityChlorineMax) {
		violations = append(violations, fmt.Sprintf("chlorine %.2f mg/L", *ev.Chlorine))
	}
	if ev.Hardness != nil && *ev.Hardness > qualityHardnessMax {
		violations = append(violations, fmt.Sprintf("hardness %.2f mg/L", *ev.Hardness))
	}
	if len(violations) == 0 {
		return nil, nil
	}

	message := "Water quality out of range: " + strings.Join(violations, ", ")
	return []alertdomain.Alert{
		draft(alertdomain.TypeWaterQuality, alertdomain.SeverityCritical, message, ev.UserID, alertdomain.SourceQualitySample, ev.SampleID),
	}, nil
}

type meterReadingDue struct{}

func (meterReadingDue) Name() string { return RuleMeterReadingDue }

func (meterReadingDue) Evaluate(event Event, now time.Time) ([]alertdomain.Alert, error) {
	ev, ok := event.(ReadingCheck)
	if !ok {
		return nil, nil
	}
	threshold := ev.DaysThreshold
	if threshold <= 0 {
		threshold = DefaultReadingDueDays
	}

	var message string
	if ev.Latest == nil {
		message = fmt.Sprintf("Meter %s has never been read", ev.MeterNumber)
	} else {
		days := calculator.ElapsedDays(ev.Latest.ReadingDate, now)
		if days <= threshold {
			return nil, nil
		}
		message = fmt.Sprintf("Meter %s was last read %d days ago", ev.MeterNumber, days)
	}
	connectionID := ev.ConnectionID
	userID := ev.UserID
	return []alertdomain.Alert{
		draft(alertdomain.TypeMeterReadingDue, alertdomain.SeverityLow, message, &userID, alertdomain.SourceConnection, &connectionID),
	}, nil
}

type complaintEscalated struct{}

func (complaintEscalated) Name() string { return RuleComplaintEscalated }

func (complaintEscalated) Evaluate(event Event, _ time.Time) ([]alertdomain.Alert, error) {
	ev, ok := event.(ComplaintAge)
	if !ok {
		return nil, nil
	}
	c := ev.Complaint
	if c.Status != complaintdomain.StatusEscalated {
		return nil, nil
	}
	message := fmt.Sprintf("Complaint %s (%s) escalated, open since %s", c.ID, c.Type, c.Date.Format(time.DateOnly))
	return []alertdomain.Alert{
		draft(alertdomain.TypeComplaintEscalated, alertdomain.SeverityHigh, message, &c.UserID, alertdomain.SourceComplaint, &c.ID),
	}, nil
}

func draft(alertType alertdomain.AlertType, severity alertdomain.Severity, message string, userID *snowflake.ID, sourceType string, sourceID *snowflake.ID) alertdomain.Alert {
	return alertdomain.Alert{
		UserID:     copyID(userID),
		Type:       alertType,
		Message:    message,
		Status:     alertdomain.AlertStatusActive,
		Severity:   severity,
		Priority:   alertdomain.Priority(severity, alertType),
		SourceType: sourceType,
		SourceID:   copyID(sourceID),
	}
}

func copyID(id *snowflake.ID) *snowflake.ID {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}
