package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/alert"
	"github.com/smallbiznis/tirta/internal/audit"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/billing"
	"github.com/smallbiznis/tirta/internal/cascade"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/complaint"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/connection"
	"github.com/smallbiznis/tirta/internal/customer"
	"github.com/smallbiznis/tirta/internal/escalation"
	"github.com/smallbiznis/tirta/internal/ingest"
	"github.com/smallbiznis/tirta/internal/lock"
	"github.com/smallbiznis/tirta/internal/migration"
	"github.com/smallbiznis/tirta/internal/notify"
	"github.com/smallbiznis/tirta/internal/observability"
	"github.com/smallbiznis/tirta/internal/reading"
	"github.com/smallbiznis/tirta/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		audit.Module,
		authorization.Module,

		// Domains
		customer.Module,
		connection.Module,
		reading.Module,
		billing.Module,
		alert.Module,
		complaint.Module,
		notify.Module,

		// Cascade and its drivers
		cascade.Module,
		escalation.Module,
		ingest.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
