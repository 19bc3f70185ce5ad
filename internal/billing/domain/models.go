package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "Unpaid"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusOverdue PaymentStatus = "Overdue"
)

// Bill is created once per accepted reading. ConnectionID and UserID are
// copied from the reading's connection at creation.
type Bill struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	ReadingID     snowflake.ID    `json:"reading_id" gorm:"not null;uniqueIndex"`
	ConnectionID  snowflake.ID    `json:"connection_id" gorm:"not null;index"`
	UserID        snowflake.ID    `json:"user_id" gorm:"not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:text;not null;index"`
	BillDate      time.Time       `json:"bill_date" gorm:"not null"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	PaymentMethod *string         `json:"payment_method,omitempty" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// IsOpen reports whether the bill still counts towards the outstanding balance.
func (b Bill) IsOpen() bool {
	return b.PaymentStatus == PaymentStatusUnpaid || b.PaymentStatus == PaymentStatusOverdue
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	switch PaymentStatus(value) {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusOverdue:
		return PaymentStatus(value), nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransition reports whether from -> to is a forward move. Paid is terminal
// and Overdue never returns to Unpaid.
func CanTransition(from, to PaymentStatus) bool {
	switch from {
	case PaymentStatusUnpaid:
		return to == PaymentStatusOverdue || to == PaymentStatusPaid
	case PaymentStatusOverdue:
		return to == PaymentStatusPaid
	default:
		return false
	}
}
