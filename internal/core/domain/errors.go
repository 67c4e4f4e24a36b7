package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidOptions = fmt.Errorf("invalid options: %w", ErrInvalidInput)
	ErrUpstreamFormat = errors.New("upstream format error")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrTemporary      = errors.New("temporary failure")
)

// Stable error codes reported to HTTP and MCP callers.
const (
	CodeInvalidInput        = "invalid_input"
	CodeInvalidOptions      = "invalid_options"
	CodeUpstreamFormat      = "upstream_format"
	CodeQuotaExceeded       = "quota_exceeded"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUnknown             = "unknown"
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ErrorCode maps an error chain to its stable code. Options errors are
// checked before generic input errors since they wrap ErrInvalidInput.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrInvalidOptions):
		return CodeInvalidOptions
	case IsKind(err, ErrInvalidInput):
		return CodeInvalidInput
	case IsKind(err, ErrUpstreamFormat):
		return CodeUpstreamFormat
	case IsKind(err, ErrQuotaExceeded):
		return CodeQuotaExceeded
	case IsKind(err, ErrTemporary):
		return CodeUpstreamUnavailable
	default:
		return CodeUnknown
	}
}
