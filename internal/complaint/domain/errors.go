package domain

import "github.com/smallbiznis/tirta/pkg/errs"

var (
	ErrInvalidID          = errs.Validation("invalid_id")
	ErrInvalidUser        = errs.Validation("invalid_user")
	ErrInvalidType        = errs.Validation("invalid_complaint_type")
	ErrInvalidDescription = errs.Validation("invalid_description")
	ErrInvalidStatus      = errs.Validation("invalid_complaint_status")
	ErrNotFound           = errs.NotFound("complaint_not_found")
	ErrUserNotFound       = errs.NotFound("user_not_found")
	ErrInvalidTransition  = errs.Conflict("invalid_complaint_transition")
)
