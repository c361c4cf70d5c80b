package cmd

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1 // some items failed, were blocked or could not be launched
	ExitFatal  = 2 // validation, configuration, tracking document or usage
)

// ExitError carries a specific exit code out of a command. A nil Err means
// the command already reported everything it had to say.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func fatal(err error) error {
	return &ExitError{Code: ExitFatal, Err: err}
}

// itemsFailed is returned after a summary when some items did not complete.
var itemsFailed = &ExitError{Code: ExitFailed}

// PrintError prints a user-facing message. With --verbose the underlying
// technical error is printed instead.
func PrintError(userMsg string, technicalErr error) {
	w := rootCmd.ErrOrStderr()
	if verbose && technicalErr != nil {
		fmt.Fprintf(w, "Error: %v\n", technicalErr)
		return
	}
	fmt.Fprintln(w, userMsg)
}

// reportExit prints err (if it has something to say) and maps it to an exit code.
func reportExit(err error) int {
	if err == nil {
		return ExitOK
	}
	code := ExitFatal
	var ee *ExitError
	if errors.As(err, &ee) {
		code = ee.Code
		if ee.Err == nil {
			return code
		}
	}
	PrintError("Error: "+userMessage(err), err)
	return code
}

// userMessage drops the ExitError wrapper so the message reads naturally.
func userMessage(err error) string {
	var ee *ExitError
	if errors.As(err, &ee) && ee.Err != nil {
		return ee.Err.Error()
	}
	return err.Error()
}
