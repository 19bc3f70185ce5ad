package testutil

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	auditrepo "github.com/smallbiznis/tirta/internal/audit/repository"
	auditservice "github.com/smallbiznis/tirta/internal/audit/service"
	"github.com/smallbiznis/tirta/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewAuditService(db *gorm.DB, node *snowflake.Node, clk clock.Clock) auditdomain.Service {
	return auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})
}

// AuditActions returns the recorded actions in insertion order.
func AuditActions(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var actions []string
	if err := db.Raw(`SELECT action FROM audit_logs ORDER BY id ASC`).Scan(&actions).Error; err != nil {
		t.Fatalf("list audit actions: %v", err)
	}
	return actions
}

// AuditLogs returns all entries for an action.
func AuditLogs(t *testing.T, db *gorm.DB, action string) []auditdomain.AuditLog {
	t.Helper()
	var logs []auditdomain.AuditLog
	if err := db.Where("action = ?", action).Order("id ASC").Find(&logs).Error; err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	return logs
}

func Count(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
