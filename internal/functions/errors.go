package functions

import "fmt"

// Code is a machine-readable kind of a failed call
type Code string

const (
	CodeInvalidArgument Code = "invalid-argument"
	CodeUnknown         Code = "unknown"
)

// Error is the only failure returned by callable functions.
// Business outcomes such as a missing user are reported through Status instead.
type Error struct {
	Code    Code
	Message string
	// Details carries the text of the underlying cause, if any
	Details string
}

func (e *Error) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
}

func invalidArgument(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

func unknown(msg string, cause error) *Error {
	return &Error{Code: CodeUnknown, Message: msg, Details: cause.Error()}
}
