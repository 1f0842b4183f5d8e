package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrLengthMismatch   = errors.New("paired sample length mismatch")
	ErrInvalidArgument  = errors.New("invalid argument")

	// Solver errors
	ErrConvergence = errors.New("solver did not converge")
)

// InsufficientDataError reports that fewer valid points survived masking
// than an operation needs.
type InsufficientDataError struct {
	Op       string
	Valid    int
	Required int
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %v (%d valid, %d required): %s", e.Op, ErrInsufficientData, e.Valid, e.Required, e.Reason)
	}
	return fmt.Sprintf("%s: %v (%d valid, %d required)", e.Op, ErrInsufficientData, e.Valid, e.Required)
}

// Is lets errors.Is match against ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// ConvergenceError carries the diagnostics of an iterative solver that
// stopped without meeting its convergence criteria.
type ConvergenceError struct {
	Op         string
	Iterations int
	Residual   float64
	Status     string
	Cause      error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("%s: %v after %d iterations (status %s, residual %g)", e.Op, ErrConvergence, e.Iterations, e.Status, e.Residual)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConvergenceError) Is(target error) bool {
	return target == ErrConvergence
}

func (e *ConvergenceError) Unwrap() error {
	return e.Cause
}

// Error constructors with context
func NewInsufficientDataError(op string, valid, required int) error {
	return &InsufficientDataError{Op: op, Valid: valid, Required: required}
}

func NewDegenerateError(op string, valid int, reason string) error {
	return &InsufficientDataError{Op: op, Valid: valid, Required: valid, Reason: reason}
}

func NewLengthMismatchError(op string, nx, ny int) error {
	return fmt.Errorf("%s: %w: %d x values, %d y values", op, ErrLengthMismatch, nx, ny)
}

func NewInvalidArgumentError(op, reason string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidArgument, reason)
}

// Error checking helpers
func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsConvergenceError(err error) bool {
	return errors.Is(err, ErrConvergence)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrInvalidArgument)
}
