package stream

import (
	"errors"
	"fmt"
)

// ErrTruncated is reported when the body ends without a done signal.
var ErrTruncated = errors.New("stream ended before completion signal")

// StreamError marks a transport-level failure. The accumulator is FAILED
// and yields no output.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return fmt.Sprintf("stream failed: %v", e.Err) }
func (e *StreamError) Unwrap() error { return e.Err }

// ParseError describes one malformed unit. It is logged and skipped.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("malformed chunk %q: %v", e.Line, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ConversionError is recorded when the final text cannot be rendered. The
// output degrades to "".
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string { return fmt.Sprintf("markdown conversion failed: %v", e.Err) }
func (e *ConversionError) Unwrap() error { return e.Err }
