package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() readingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reading *readingdomain.MeterReading) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meter_readings (id, connection_id, reading_date, units_consumed, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		reading.ID,
		reading.ConnectionID,
		reading.ReadingDate,
		reading.UnitsConsumed,
		reading.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*readingdomain.MeterReading, error) {
	var reading readingdomain.MeterReading
	err := db.WithContext(ctx).Raw(
		`SELECT id, connection_id, reading_date, units_consumed, created_at
		 FROM meter_readings
		 WHERE id = ?`,
		id,
	).Scan(&reading).Error
	if err != nil {
		return nil, err
	}
	if reading.ID == 0 {
		return nil, nil
	}
	return &reading, nil
}

func (r *repo) ListByConnection(ctx context.Context, db *gorm.DB, connectionID snowflake.ID) ([]readingdomain.MeterReading, error) {
	var readings []readingdomain.MeterReading
	err := db.WithContext(ctx).Raw(
		`SELECT id, connection_id, reading_date, units_consumed, created_at
		 FROM meter_readings
		 WHERE connection_id = ?
		 ORDER BY reading_date ASC, id ASC`,
		connectionID,
	).Scan(&readings).Error
	if err != nil {
		return nil, err
	}
	return readings, nil
}

func (r *repo) Latest(ctx context.Context, db *gorm.DB, connectionID snowflake.ID) (*readingdomain.MeterReading, error) {
	var reading readingdomain.MeterReading
	err := db.WithContext(ctx).Raw(
		`SELECT id, connection_id, reading_date, units_consumed, created_at
		 FROM meter_readings
		 WHERE connection_id = ?
		 ORDER BY reading_date DESC, id DESC
		 LIMIT 1`,
		connectionID,
	).Scan(&reading).Error
	if err != nil {
		return nil, err
	}
	if reading.ID == 0 {
		return nil, nil
	}
	return &reading, nil
}
