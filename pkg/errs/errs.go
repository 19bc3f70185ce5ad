// Package errs defines the error kinds shared by every domain package.
//
// Domain packages declare snake_case sentinel errors bound to a kind, so callers can match
// either the precise sentinel or the broad kind:
//
//	errors.Is(err, readingdomain.ErrInvalidUnits) // precise
//	errors.Is(err, errs.ErrValidation)            // kind
package errs

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrValidation     = errors.New("validation_error")
	ErrNotFound       = errors.New("not_found")
	ErrConflict       = errors.New("conflict")
	ErrRuleEvaluation = errors.New("rule_evaluation_error")
)

// Error is a coded error that belongs to one kind.
type Error struct {
	kind  error
	code  string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.code, e.cause)
	}
	return e.code
}

// Code returns the snake_case code.
func (e *Error) Code() string { return e.code }

// Kind returns the kind sentinel.
func (e *Error) Kind() error { return e.kind }

func (e *Error) Unwrap() error { return e.cause }

// Is matches the kind sentinel and any Error with the same kind and code.
func (e *Error) Is(target error) bool {
	if target == e.kind {
		return true
	}
	var other *Error
	if errors.As(target, &other) {
		return other.kind == e.kind && other.code == e.code
	}
	return false
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) error {
	return &Error{kind: e.kind, code: e.code, cause: cause}
}

func Validation(code string) *Error     { return &Error{kind: ErrValidation, code: code} }
func NotFound(code string) *Error       { return &Error{kind: ErrNotFound, code: code} }
func Conflict(code string) *Error       { return &Error{kind: ErrConflict, code: code} }
func RuleEvaluation(code string) *Error { return &Error{kind: ErrRuleEvaluation, code: code} }

// RuleError reports a single alert rule that failed while evaluating an event.
type RuleError struct {
	Rule  string
	Cause error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

func (e *RuleError) Is(target error) bool { return target == ErrRuleEvaluation }

// KindOf returns the kind sentinel of err, or nil when err carries no kind.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrRuleEvaluation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
