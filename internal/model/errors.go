package model

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors unwrap to one of these so callers can use errors.Is.
var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrInsufficientHistory  = errors.New("insufficient history")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// InputError reports the offending bar of a rejected series.
type InputError struct {
	Index  int
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("malformed input at bar %d (%s): %s", e.Index, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrMalformedInput }

// ConfigError reports an out-of-range configuration option.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }

func insufficient(n int) error {
	return fmt.Errorf("%w: got %d bars, need at least %d", ErrInsufficientHistory, n, MinUsableBars)
}
