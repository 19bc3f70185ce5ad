package rules

import (
	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
)

// Event is one input to the engine. The set of events is closed.
type Event interface {
	Kind() string
	isEvent()
}

// NewReading is an accepted reading with the connection's earlier readings.
type NewReading struct {
	UserID      snowflake.ID
	MeterNumber string
	Reading     readingdomain.MeterReading
	Prior       []readingdomain.MeterReading
}

// BillStatusChanged carries the bill after the change.
type BillStatusChanged struct {
	Bill billingdomain.Bill
	From billingdomain.PaymentStatus
}

// ComplaintAge is emitted while sweeping complaints.
type ComplaintAge struct {
	Complaint complaintdomain.Complaint
}

// QualitySample is a water quality measurement. Nil fields were not measured.
type QualitySample struct {
	SampleID     *snowflake.ID
	UserID       *snowflake.ID
	ConnectionID *snowflake.ID
	PH           *float64
	Turbidity    *float64
	Chlorine     *float64
	Hardness     *float64
}

// ReadingCheck asks whether a connection is due a reading. Latest is nil when
// the connection has never been read.
type ReadingCheck struct {
	ConnectionID  snowflake.ID
	UserID        snowflake.ID
	MeterNumber   string
	Latest        *readingdomain.MeterReading
	DaysThreshold int
}

func (NewReading) Kind() string        { return "new_reading" }
func (BillStatusChanged) Kind() string { return "bill_status_changed" }
func (ComplaintAge) Kind() string      { return "complaint_age" }
func (QualitySample) Kind() string     { return "quality_sample" }
func (ReadingCheck) Kind() string      { return "reading_check" }

func (NewReading) isEvent()        {}
func (BillStatusChanged) isEvent() {}
func (ComplaintAge) isEvent()      {}
func (QualitySample) isEvent()     {}
func (ReadingCheck) isEvent()      {}
