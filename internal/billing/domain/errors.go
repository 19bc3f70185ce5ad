package domain

import "github.com/smallbiznis/tirta/pkg/errs"

var (
	ErrInvalidID         = errs.Validation("invalid_id")
	ErrInvalidStatus     = errs.Validation("invalid_payment_status")
	ErrInvalidMethod     = errs.Validation("invalid_payment_method")
	ErrNotFound          = errs.NotFound("bill_not_found")
	ErrDuplicateReading  = errs.Conflict("bill_exists_for_reading")
	ErrInvalidTransition = errs.Conflict("invalid_payment_status_transition")
)
