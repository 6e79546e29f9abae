package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Every external-call wrapper tags its error with one of these so
// callers can decide between continuing and aborting an invocation.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrTransport     = errors.New("transport error")
	ErrRejected      = errors.New("request rejected")
	ErrParse         = errors.New("parse error")
)

// Severity levels used as a log field. logrus has no critical level, so
// configuration failures are logged at error level with severity=critical.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
)

// Wrap tags err with the given kind and the operation that produced it.
// A nil err yields a bare kind error carrying only the operation.
func Wrap(kind error, op string, err error) error {
	if kind == nil {
		kind = ErrTransport
	}
	op = strings.TrimSpace(op)
	if err == nil {
		if op == "" {
			return kind
		}
		return fmt.Errorf("%w: %s", kind, op)
	}
	if op == "" {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}

// Configuration reports a missing or invalid configuration value.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// KindOf returns a short label for the failure kind, suitable for a log field.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

// Severity maps a failure to the severity it should be logged with.
func Severity(err error) string {
	if errors.Is(err, ErrConfiguration) {
		return SeverityCritical
	}
	return SeverityError
}
