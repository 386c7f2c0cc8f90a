// Package clierrors defines the error type that carries a specific process
// exit code through the command layer.
package clierrors

import "fmt"

// ExitError is an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Usagef builds a usage error, exit code 2.
func Usagef(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Runtimef builds a runtime failure, exit code 1.
func Runtimef(format string, args ...any) *ExitError {
	return &ExitError{Code: 1, Message: fmt.Sprintf(format, args...)}
}
