package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"gorm.io/gorm"
)

const billColumns = `id, reading_id, connection_id, user_id, amount, payment_status, bill_date,
	payment_date, payment_method, created_at, updated_at`

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bill *billingdomain.Bill) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bills (`+billColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID,
		bill.ReadingID,
		bill.ConnectionID,
		bill.UserID,
		bill.Amount,
		bill.PaymentStatus,
		bill.BillDate,
		bill.PaymentDate,
		bill.PaymentMethod,
		bill.CreatedAt,
		bill.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Bill, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByReadingID(ctx context.Context, db *gorm.DB, readingID snowflake.ID) (*billingdomain.Bill, error) {
	return r.findOne(ctx, db, `reading_id = ?`, readingID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*billingdomain.Bill, error) {
	var bill billingdomain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT `+billColumns+` FROM bills WHERE `+where+` LIMIT 1`,
		arg,
	).Scan(&bill).Error
	if err != nil {
		return nil, err
	}
	if bill.ID == 0 {
		return nil, nil
	}
	return &bill, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]billingdomain.Bill, error) {
	var bills []billingdomain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT `+billColumns+`
		 FROM bills
		 WHERE user_id = ?
		 ORDER BY bill_date ASC, id ASC`,
		userID,
	).Scan(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, statuses ...billingdomain.PaymentStatus) ([]billingdomain.Bill, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, status)
	}

	var bills []billingdomain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT `+billColumns+`
		 FROM bills
		 WHERE payment_status IN (`+placeholders+`)
		 ORDER BY bill_date ASC, id ASC`,
		args...,
	).Scan(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, update billingdomain.StatusUpdate) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE bills
		 SET payment_status = ?,
		     payment_date = COALESCE(?, payment_date),
		     payment_method = COALESCE(?, payment_method),
		     updated_at = ?
		 WHERE id = ? AND payment_status = ?`,
		update.To,
		update.PaymentDate,
		update.PaymentMethod,
		update.UpdatedAt,
		update.ID,
		update.From,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type unpaidCount struct {
	UserID snowflake.ID
	Unpaid int
}

func (r *repo) CountUnpaidByUser(ctx context.Context, db *gorm.DB) (map[snowflake.ID]int, error) {
	var rows []unpaidCount
	err := db.WithContext(ctx).Raw(
		`SELECT c.user_id AS user_id, COUNT(b.id) AS unpaid
		 FROM bills b
		 JOIN meter_readings mr ON mr.id = b.reading_id
		 JOIN connections c ON c.id = mr.connection_id
		 WHERE b.payment_status <> ?
		 GROUP BY c.user_id`,
		billingdomain.PaymentStatusPaid,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[snowflake.ID]int, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Unpaid
	}
	return counts, nil
}
