package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() complaintdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, complaint *complaintdomain.Complaint) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO complaints (id, user_id, type, description, status, response, date, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		complaint.ID,
		complaint.UserID,
		complaint.Type,
		complaint.Description,
		complaint.Status,
		complaint.Response,
		complaint.Date,
		complaint.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*complaintdomain.Complaint, error) {
	var complaint complaintdomain.Complaint
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, description, status, response, date, updated_at
		 FROM complaints
		 WHERE id = ?`,
		id,
	).Scan(&complaint).Error
	if err != nil {
		return nil, err
	}
	if complaint.ID == 0 {
		return nil, nil
	}
	return &complaint, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, statuses ...complaintdomain.Status) ([]complaintdomain.Complaint, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, status)
	}

	var complaints []complaintdomain.Complaint
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, description, status, response, date, updated_at
		 FROM complaints
		 WHERE status IN (`+placeholders+`)
		 ORDER BY date ASC, id ASC`,
		args...,
	).Scan(&complaints).Error
	if err != nil {
		return nil, err
	}
	return complaints, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to complaintdomain.Status, response *string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE complaints
		 SET status = ?, response = COALESCE(?, response), updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		response,
		now,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
