package cli

import (
	"errors"

	"github.com/aidanlsb/sqlgraph/internal/plan"
	"github.com/aidanlsb/sqlgraph/internal/querytree"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	// Configuration errors
	ErrConfigInvalid = "CONFIG_INVALID"
	ErrSchemaInvalid = "SCHEMA_INVALID"

	// Plan errors
	ErrPlanNotFound = "PLAN_NOT_FOUND"
	ErrPlanInvalid  = "PLAN_INVALID"

	// Compilation errors
	ErrStructuralViolation = "STRUCTURAL_VIOLATION"
	ErrUnsupportedPred     = "UNSUPPORTED_PREDICATE"

	// Database errors
	ErrDatabaseError = "DATABASE_ERROR"

	// File errors
	ErrFileNotFound   = "FILE_NOT_FOUND"
	ErrFileReadError  = "FILE_READ_ERROR"
	ErrFileWriteError = "FILE_WRITE_ERROR"

	// Input errors
	ErrInvalidInput    = "INVALID_INPUT"
	ErrMissingArgument = "MISSING_ARGUMENT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// compileErrorCode maps errors from plan building and SQL compilation to
// their stable code.
func compileErrorCode(err error) string {
	switch {
	case errors.Is(err, querytree.ErrUnsupportedPredicate):
		return ErrUnsupportedPred
	case errors.Is(err, querytree.ErrStructuralViolation):
		return ErrStructuralViolation
	case errors.Is(err, plan.ErrInvalid):
		return ErrPlanInvalid
	}
	return ErrInternal
}
