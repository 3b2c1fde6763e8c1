// Package errors provides the error types shared by every intelicar package.
//
// It builds on github.com/cockroachdb/errors so that wrapped errors carry stack
// traces (visible with %+v) while remaining compatible with the standard
// errors.Is / errors.As helpers.
//
// Sentinel errors describe a failure category and typed errors carry the
// details of a single failure:
//
//	if err := lr.Fit(X, y); errors.Is(err, errors.ErrSingularMatrix) {
//		// retry with regularization
//	}
//
//	var dimErr *errors.DimensionError
//	if errors.As(err, &dimErr) {
//		fmt.Println(dimErr.Expected, dimErr.Got)
//	}
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// prefix is prepended to ModelError messages.
const prefix = "intelicar"

// Sentinel errors.
var (
	ErrEmptyData         = errors.New("empty data")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrSingularMatrix    = errors.New("singular matrix")
	ErrNotFitted         = errors.New("model not fitted")
	ErrNotImplemented    = errors.New("not implemented")
	ErrMissingColumn     = errors.New("missing column")
	ErrNoModels          = errors.New("no models")
	ErrInvalidValue      = errors.New("invalid value")
	ErrNotFound          = errors.New("not found")
)

// Re-exports so callers only import one errors package.
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// ModelError reports a failed model operation together with its cause.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

// NewModelError creates a ModelError. err is typically one of the sentinels.
func NewModelError(op, message string, err error) error {
	return errors.WithStackDepth(&ModelError{Op: op, Message: message, Err: err}, 1)
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ValueError reports an argument with an unacceptable value.
type ValueError struct {
	Op      string
	Message string
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) error {
	return errors.WithStackDepth(&ValueError{Op: op, Message: message}, 1)
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is makes every ValueError match ErrInvalidValue.
func (e *ValueError) Is(target error) bool { return target == ErrInvalidValue }

// DimensionError reports mismatched shapes. Axis is 0 for rows, 1 for columns.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStackDepth(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}, 1)
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch on axis %d: expected %d, got %d", e.Op, e.Axis, e.Expected, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// NotFittedError is returned when a model is used before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStackDepth(&NotFittedError{ModelName: modelName, Method: method}, 1)
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: this %s instance is not fitted yet, call Fit before %s", e.ModelName, e.ModelName, e.Method)
}

func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }

// ValidationError reports a configuration or input that failed validation.
type ValidationError struct {
	Field  string
	Reason string
	Value  interface{}
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string, value interface{}) error {
	return errors.WithStackDepth(&ValidationError{Field: field, Reason: reason, Value: value}, 1)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidValue }

// Recover converts a panic raised below it into an error assigned to *err.
// It must be deferred directly:
//
//	func (m *Model) Fit(X, y mat.Matrix) (err error) {
//		defer errors.Recover(&err, "Model.Fit")
//		...
//	}
//
// gonum panics on shape violations, so numeric entry points defer it.
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = errors.Wrapf(e, "%s: recovered from panic", op)
			return
		}
		*err = errors.Newf("%s: recovered from panic: %v", op, r)
	}
}
