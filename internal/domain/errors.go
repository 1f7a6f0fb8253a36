package domain

import (
	"errors"
	"fmt"
)

// ErrResultNotFound is returned when a stored analysis result does not exist
var ErrResultNotFound = errors.New("analysis result not found")

// ValidationError reports a malformed or missing request field.
// It is raised before any data is fetched and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// UpstreamFetchError reports a failed or malformed transaction-store query
type UpstreamFetchError struct {
	Op  string
	Err error
}

func NewUpstreamFetchError(op string, err error) *UpstreamFetchError {
	return &UpstreamFetchError{Op: op, Err: err}
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("transaction fetch failed (%s): %v", e.Op, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// ComputationError reports an internal fault during detection or aggregation.
// It indicates a defect.
type ComputationError struct {
	Stage string
	Err   error
}

func NewComputationError(stage string, err error) *ComputationError {
	return &ComputationError{Stage: stage, Err: err}
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("analysis computation failed in %s: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// IsValidation returns true if err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUpstream returns true if err is or wraps an UpstreamFetchError
func IsUpstream(err error) bool {
	var u *UpstreamFetchError
	return errors.As(err, &u)
}

// IsComputation returns true if err is or wraps a ComputationError
func IsComputation(err error) bool {
	var c *ComputationError
	return errors.As(err, &c)
}
