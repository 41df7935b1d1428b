// Package errors holds the structured error shown to gpumon users.
//
// Only setup problems are errors: bad cluster files, an unwritable config
// directory, a missing ssh client. A host that can't be polled is recorded
// on its snapshot instead.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	ErrConfig = "CONFIG" // cluster file contents or flag values
	ErrStore  = "STORE"  // reading or writing the config directory
	ErrSSH    = "SSH"    // local SSH setup
	ErrExec   = "EXEC"   // local tooling and the terminal UI
	ErrParse  = "PARSE"
)

// Error is a failure with a code, what went wrong, and how to fix it.
// Error() renders it as:
//
//	✗ <Message>
//
//	  <Cause>
//
//	  <Suggestion>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New returns an Error without a cause.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode returns an Error around err.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✗ %s\n", e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, "\n  %s\n", e.Cause.Error())
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  %s\n", e.Suggestion)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return nil, false
	}
	return e, true
}

// IsCode reports whether err carries an *Error with code.
func IsCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// Summary returns one line for a list or table cell: the Message of a
// structured error, else the first line of err.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Message
	}
	return FirstLine(err.Error())
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
