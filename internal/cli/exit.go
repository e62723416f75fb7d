package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	// ExitCodeFailure is the generic non-zero exit code.
	ExitCodeFailure = 1
)

// ExitError carries an exit code for main to use. Printed marks errors
// the command already reported itself.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exitf builds an ExitError from a format string.
func Exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

func usageError(cmd *cobra.Command, message string) error {
	_ = cmd.Usage()
	return &ExitError{Code: ExitCodeFailure, Err: fmt.Errorf("%s", message), Printed: true}
}
