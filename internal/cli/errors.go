package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	"github.com/Miyamura80/CLI-Template/internal/config"
	"github.com/Miyamura80/CLI-Template/internal/execrunner"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/pkg/scaffold"
)

// ExitCode maps an error returned by Execute to the process exit status.
// Usage problems are 2, unit subprocesses propagate their own status, and
// every other failure is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *clierrors.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var unitErr *execrunner.ExitError
	if errors.As(err, &unitErr) {
		return unitErr.Code
	}

	switch {
	case errors.Is(err, registry.ErrUnknownCommand),
		errors.Is(err, invocation.ErrInvalidFormat),
		errors.Is(err, config.ErrInvalidPath),
		errors.Is(err, scaffold.ErrInvalidName()):
		return 2
	}
	return 1
}

// WriteError renders err for the terminal: the message alone normally, the
// full unwrap chain under debug.
func WriteError(w io.Writer, err error, debug bool) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, err)
	if !debug {
		return
	}
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(w, "  caused by: %v\n", cause)
	}
}
