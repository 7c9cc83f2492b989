// Package lenserr provides structured error types for the lens-correction solver.
//
// Every failure and warning produced by the solver carries a machine-readable
// Code so callers can route them without string matching:
//
//   - INVALID_INPUT: malformed tiles or matches; fatal, never retried.
//   - INSUFFICIENT_OBSERVATIONS: mesh density refinement ran out of budget;
//     returned as a warning, the solve proceeds.
//   - DEGENERATE_MESH: no observations, the mesh is the bare tile boundary;
//     returned as a warning.
//   - MESH_TARGET_NOT_BRACKETED: the vertex-count search could not bracket the
//     requested target; the best mesh found is used and this is a warning.
//   - UNDERCONSTRAINED_SYSTEM: the regularized normal equations could not be
//     factorized; fatal for the call, callers may retry with a smaller mesh.
//   - POOR_SOLVE_QUALITY: produced only by the caller-side quality gate.
//
// # Usage
//
//	err := lenserr.New(lenserr.CodeInvalidInput, "tile %q has zero width", id)
//	if lenserr.Is(err, lenserr.CodeUnderconstrained) {
//	    // retry with fewer vertices
//	}
package lenserr

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes.
const (
	CodeInvalidInput             Code = "INVALID_INPUT"
	CodeInsufficientObservations Code = "INSUFFICIENT_OBSERVATIONS"
	CodeDegenerateMesh           Code = "DEGENERATE_MESH"
	CodeTargetNotBracketed       Code = "MESH_TARGET_NOT_BRACKETED"
	CodeUnderconstrained         Code = "UNDERCONSTRAINED_SYSTEM"
	CodePoorSolveQuality         Code = "POOR_SOLVE_QUALITY"
	CodeInternal                 Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   `json:"code"`    // Machine-readable error code
	Message string `json:"message"` // Human-readable message
	Cause   error  `json:"-"`       // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsWarning reports whether the code is one the solver reports without failing.
func IsWarning(code Code) bool {
	switch code {
	case CodeInsufficientObservations, CodeDegenerateMesh, CodeTargetNotBracketed:
		return true
	}
	return false
}

// IsRetryable reports whether a caller may retry after changing mesh parameters.
func IsRetryable(err error) bool {
	return Is(err, CodeUnderconstrained)
}

// IsFatal reports whether err stops a solve, as opposed to a warning or a
// caller-side quality verdict.
func IsFatal(err error) bool {
	code := GetCode(err)
	if code == "" {
		return err != nil
	}
	return !IsWarning(code) && code != CodePoorSolveQuality
}
