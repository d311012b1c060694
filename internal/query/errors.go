package query

import (
	"errors"
	"fmt"
)

// MaxPathLength is the maximum byte length of a path string.
const MaxPathLength = 256

// Reasons a path is rejected. A *ParseError matches its reason with errors.Is.
var (
	ErrWhitespace                 = errors.New("leading or trailing whitespace")
	ErrMalformed                  = errors.New("malformed path")
	ErrComponentWithoutRepetition = errors.New("component requires a repetition index")
	ErrNonPositive                = errors.New("index must be a positive integer")
	ErrTooLong                    = errors.New("path exceeds maximum length")
)

// ParseError is returned when a path string cannot be parsed.
type ParseError struct {
	Path    string
	Pos     int
	Reason  error
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d in %q: %s: %s", e.Pos, e.Path, e.Reason, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Reason }
