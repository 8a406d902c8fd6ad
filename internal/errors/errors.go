package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodeUnavailable Code = 12
	CodeUnsupported Code = 13
	CodeBlocked     Code = 16

	// Pipeline codes. Each one maps to a distinct reply in the orchestrator.
	CodeValidation    Code = 20
	CodeBuild         Code = 21
	CodeQuote         Code = 22
	CodeNoRoutes      Code = 23
	CodeSwap          Code = 24
	CodeUnknownIntent Code = 25
	CodeSubmit        Code = 26
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether the outermost coded error in err's chain has the given code.
func Is(err error, code Code) bool {
	if cErr, ok := As(err); ok {
		return cErr.Code == code
	}
	return false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}

// TypeName is the envelope error type for a code.
func TypeName(code Code) string {
	switch code {
	case CodeUsage:
		return "usage_error"
	case CodeAuth:
		return "auth_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "provider_unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeBlocked:
		return "command_blocked"
	case CodeValidation:
		return "validation_error"
	case CodeBuild:
		return "build_error"
	case CodeQuote:
		return "quote_error"
	case CodeNoRoutes:
		return "no_routes"
	case CodeSwap:
		return "swap_error"
	case CodeUnknownIntent:
		return "unknown_intent"
	case CodeSubmit:
		return "submit_error"
	default:
		return "internal_error"
	}
}
