package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	"gorm.io/gorm"
)

const alertColumns = `id, user_id, type, message, status, severity, priority, source_type, source_id,
	created_at, resolved_at`

type repo struct{}

func Provide() alertdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, alert *alertdomain.Alert) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO alerts (`+alertColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.UserID,
		alert.Type,
		alert.Message,
		alert.Status,
		alert.Severity,
		alert.Priority,
		alert.SourceType,
		alert.SourceID,
		alert.CreatedAt,
		alert.ResolvedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*alertdomain.Alert, error) {
	var alert alertdomain.Alert
	err := db.WithContext(ctx).Raw(
		`SELECT `+alertColumns+` FROM alerts WHERE id = ?`,
		id,
	).Scan(&alert).Error
	if err != nil {
		return nil, err
	}
	if alert.ID == 0 {
		return nil, nil
	}
	return &alert, nil
}

func (r *repo) FindActiveBySource(ctx context.Context, db *gorm.DB, alertType alertdomain.AlertType, sourceType string, sourceID snowflake.ID) (*alertdomain.Alert, error) {
	var alert alertdomain.Alert
	err := db.WithContext(ctx).Raw(
		`SELECT `+alertColumns+`
		 FROM alerts
		 WHERE type = ? AND source_type = ? AND source_id = ? AND status = ?
		 LIMIT 1`,
		alertType,
		sourceType,
		sourceID,
		alertdomain.AlertStatusActive,
	).Scan(&alert).Error
	if err != nil {
		return nil, err
	}
	if alert.ID == 0 {
		return nil, nil
	}
	return &alert, nil
}

func (r *repo) Resolve(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE alerts SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		alertdomain.AlertStatusResolved,
		now,
		id,
		alertdomain.AlertStatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ResolveActiveByUserAndType(ctx context.Context, db *gorm.DB, userID snowflake.ID, alertType alertdomain.AlertType, now time.Time) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM alerts
		 WHERE user_id = ? AND type = ? AND status = ?
		 ORDER BY id ASC`,
		userID,
		alertType,
		alertdomain.AlertStatusActive,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err = db.WithContext(ctx).Exec(
		`UPDATE alerts SET status = ?, resolved_at = ?
		 WHERE id IN ? AND status = ?`,
		alertdomain.AlertStatusResolved,
		now,
		ids,
		alertdomain.AlertStatusActive,
	).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter alertdomain.ListFilter) ([]alertdomain.Alert, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != nil {
		clauses = append(clauses, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY priority DESC, created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var alerts []alertdomain.Alert
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
