package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is matched by every error caused by a source that exists
	// but cannot be parsed.
	ErrMalformed = errors.New("malformed configuration source")

	// ErrMissingSource is returned for a required source that does not exist.
	// Optional sources that are missing contribute an empty mapping instead.
	ErrMissingSource = errors.New("configuration source not found")
)

// ParseError describes a configuration source that could not be parsed
type ParseError struct {
	Source string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s config %s: %v", e.Format, e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes every ParseError match ErrMalformed
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}
