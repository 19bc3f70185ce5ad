package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"gorm.io/gorm"
)

// Fixtures inserts rows directly, bypassing services and audit.
type Fixtures struct {
	t    *testing.T
	db   *gorm.DB
	node *snowflake.Node
	now  time.Time
	seq  int
}

func NewFixtures(t *testing.T, db *gorm.DB, node *snowflake.Node, now time.Time) *Fixtures {
	return &Fixtures{t: t, db: db, node: node, now: now}
}

func (f *Fixtures) create(value any) {
	f.t.Helper()
	if err := f.db.Create(value).Error; err != nil {
		f.t.Fatalf("insert fixture %T: %v", value, err)
	}
}

func (f *Fixtures) User(status customerdomain.UserStatus) *customerdomain.User {
	f.seq++
	user := &customerdomain.User{
		ID:        f.node.Generate(),
		Name:      fmt.Sprintf("Customer %d", f.seq),
		Email:     fmt.Sprintf("customer%d@example.com", f.seq),
		Status:    status,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	f.create(user)
	return user
}

func (f *Fixtures) Connection(userID snowflake.ID) *connectiondomain.Connection {
	f.seq++
	conn := &connectiondomain.Connection{
		ID:          f.node.Generate(),
		UserID:      userID,
		MeterNumber: fmt.Sprintf("WM%06d", f.seq),
		Status:      connectiondomain.ConnectionStatusActive,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	f.create(conn)
	return conn
}

func (f *Fixtures) Reading(connectionID snowflake.ID, date time.Time, units float64) *readingdomain.MeterReading {
	reading := &readingdomain.MeterReading{
		ID:            f.node.Generate(),
		ConnectionID:  connectionID,
		ReadingDate:   date,
		UnitsConsumed: units,
		CreatedAt:     f.now,
	}
	f.create(reading)
	return reading
}

// Bill inserts a reading for conn and a bill for it.
func (f *Fixtures) Bill(conn *connectiondomain.Connection, billDate time.Time, amount string, status billingdomain.PaymentStatus) *billingdomain.Bill {
	reading := f.Reading(conn.ID, billDate, 10)
	bill := &billingdomain.Bill{
		ID:            f.node.Generate(),
		ReadingID:     reading.ID,
		ConnectionID:  conn.ID,
		UserID:        conn.UserID,
		Amount:        decimal.RequireFromString(amount),
		PaymentStatus: status,
		BillDate:      billDate,
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	f.create(bill)
	return bill
}

func (f *Fixtures) Complaint(userID snowflake.ID, date time.Time, status complaintdomain.Status) *complaintdomain.Complaint {
	complaint := &complaintdomain.Complaint{
		ID:          f.node.Generate(),
		UserID:      userID,
		Type:        "Low Pressure",
		Description: "water pressure drops every evening",
		Status:      status,
		Date:        date,
		UpdatedAt:   date,
	}
	f.create(complaint)
	return complaint
}
