package cascade

import (
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
)

// Result is what one accepted reading produced.
type Result struct {
	CorrelationID string
	Reading       readingdomain.MeterReading
	Bill          billingdomain.Bill
	Alerts        []alertdomain.Alert
	AuditEntries  []auditdomain.AuditLog
	// RuleErrors lists rules that failed and alerts that could not be stored.
	// They never undo the reading or the bill.
	RuleErrors []error
}

// StatusResult is what a bill status change produced.
type StatusResult struct {
	CorrelationID  string
	Bill           billingdomain.Bill
	ResolvedAlerts []string
	Alerts         []alertdomain.Alert
	AuditEntries   []auditdomain.AuditLog
	RuleErrors     []error
}
