package models

import (
	"errors"
	"fmt"
)

// Static error variables shared across packages.
var (
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrRetryExhausted    = errors.New("retry exhausted")
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrUnknownLogicKind  = errors.New("unknown logic kind")
	ErrUnknownRuleType   = errors.New("unknown rule type")
)

// ConfigError marks a problem in the caller-supplied configuration, as
// opposed to a problem with the evaluated data. Configuration errors surface
// immediately with a descriptive message because they indicate a caller bug.
type ConfigError struct {
	Subject string // what part of the configuration is wrong
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Subject, e.Reason)
}

// NewConfigError builds a ConfigError for the given configuration subject.
func NewConfigError(subject, format string, args ...any) *ConfigError {
	return &ConfigError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError

	return errors.As(err, &ce)
}
