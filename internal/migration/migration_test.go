package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	entries, err := fs.ReadDir(sub, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.Equal(t, ups, downs)
}

func TestInitMigrationCoversEveryTable(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)

	conn := openSQLite(t)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		require.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+stmt.Schema.Table+" (")
	}
	require.Contains(t, string(body), "ux_alerts_active_source")
	require.Contains(t, string(body), "ux_connections_meter_number")
}

func TestApplyAutoMigratesSQLite(t *testing.T) {
	conn := openSQLite(t)
	require.NoError(t, Apply(conn, "sqlite"))

	for _, table := range []string{"users", "connections", "meter_readings", "bills", "alerts", "complaints", "audit_logs"} {
		require.True(t, conn.Migrator().HasTable(table), table)
	}
	require.True(t, conn.Migrator().HasIndex("alerts", "ux_alerts_active_source"))

	// Re-applying is a no-op.
	require.NoError(t, Apply(conn, "sqlite"))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	require.Error(t, RunMigrations(nil))
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
