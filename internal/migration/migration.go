package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"gorm.io/gorm"
)

// Models lists every table the engine owns, parents first.
func Models() []any {
	return []any{
		&customerdomain.User{},
		&connectiondomain.Connection{},
		&readingdomain.MeterReading{},
		&billingdomain.Bill{},
		&alertdomain.Alert{},
		&complaintdomain.Complaint{},
		&auditdomain.AuditLog{},
	}
}

// RunMigrations applies the embedded postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Close would also close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the models on dialects without
// embedded migrations.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Apply picks the migration strategy for the dialect.
func Apply(conn *gorm.DB, dialect string) error {
	if dialect != "postgres" {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
