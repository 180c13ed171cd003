package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for gridxlate operations.
var (
	// ErrFieldNotFound indicates a field path could not be resolved on a record.
	ErrFieldNotFound = errors.New("field not found")

	// ErrCoercionFailed indicates type coercion failed.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrEmptyFieldMap indicates a rule maps no target fields.
	ErrEmptyFieldMap = errors.New("field map is empty")

	// ErrInvalidOperator indicates an unknown filter operator.
	ErrInvalidOperator = errors.New("invalid filter operator")

	// ErrMissingValue indicates a required attribute was left empty.
	ErrMissingValue = errors.New("required value missing")

	// ErrInvalidExpression indicates a field map expression failed to compile.
	ErrInvalidExpression = errors.New("invalid transform expression")

	// ErrDependencyCycle indicates rules depend on each other in a cycle.
	ErrDependencyCycle = errors.New("rule dependency cycle")

	// ErrUnknownDependency indicates depends_on names a rule that does not exist.
	ErrUnknownDependency = errors.New("unknown rule dependency")

	// ErrDuplicateRuleName indicates two rules share a name.
	ErrDuplicateRuleName = errors.New("duplicate rule name")

	// ErrDuplicateRuleKey indicates two unnamed rules share source, target and version.
	ErrDuplicateRuleKey = errors.New("duplicate unnamed rule for source, target and version")

	// ErrInvalidOwnerID indicates an owner identifier is not a UUID.
	ErrInvalidOwnerID = errors.New("invalid owner identifier")

	// ErrSameOwner indicates a transfer whose source and destination owner match.
	ErrSameOwner = errors.New("transfer source and destination are the same owner")
)

// ValidationError reports a malformed rule, filter, rule set, or transfer
// request. Field names the offending attribute using a dotted path
// (e.g. "filter.and[1].op").
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError builds a ValidationError wrapping a sentinel.
func NewValidationError(field string, err error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
