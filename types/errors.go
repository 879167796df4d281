package types

import (
	"errors"
	"fmt"
)

// Error kinds shared by every stage. Stages wrap them in a *StepError so callers
// can tell a broken transport from an upstream that simply had nothing to give.
var (
	ErrNetwork       = errors.New("network failure")
	ErrParse         = errors.New("parse failure")
	ErrConfiguration = errors.New("configuration failure")
	ErrValidation    = errors.New("validation failure")
)

// StepError records which step failed and why
type StepError struct {
	Step string
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NetworkError wraps a transport or non-2xx failure for step
func NetworkError(step string, err error) error {
	return &StepError{Step: step, Kind: ErrNetwork, Err: err}
}

// ParseError wraps an unexpected response shape for step
func ParseError(step string, err error) error {
	return &StepError{Step: step, Kind: ErrParse, Err: err}
}

// ValidationError reports a bad argument at an entry point
func ValidationError(op, format string, args ...any) error {
	return &StepError{Step: op, Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}
