package logstore

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when a log line cannot be decoded during replay.
	ErrParse = errors.New("malformed log record")

	// ErrIO is returned when the log cannot be read, appended to or flushed.
	ErrIO = errors.New("log store I/O failure")

	// ErrClosed is returned by mutating operations on a store that is not open.
	ErrClosed = errors.New("log store is not open")
)

// ParseError describes a log line that could not be decoded.
type ParseError struct {
	// Line is the 1-based line number in the log file, or 0 when unknown.
	Line int

	// Text is the raw line, without its trailing newline.
	Text string

	// Reason explains what is wrong with the line.
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d: %s: %q", ErrParse, e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("%s: %s: %q", ErrParse, e.Reason, e.Text)
}

// Unwrap makes errors.Is(err, ErrParse) hold for every ParseError.
func (e *ParseError) Unwrap() error {
	return ErrParse
}
