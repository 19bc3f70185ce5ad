package domain

import "github.com/smallbiznis/tirta/pkg/errs"

var (
	ErrInvalidID       = errs.Validation("invalid_id")
	ErrInvalidType     = errs.Validation("invalid_alert_type")
	ErrInvalidSeverity = errs.Validation("invalid_severity")
	ErrInvalidMessage  = errs.Validation("invalid_message")
	ErrInvalidUser     = errs.Validation("invalid_user")
	ErrInvalidStatus   = errs.Validation("invalid_alert_status")
	ErrNotFound        = errs.NotFound("alert_not_found")
	ErrAlreadyResolved = errs.Conflict("alert_already_resolved")
	ErrAlreadyActive   = errs.Conflict("alert_already_active")
)
