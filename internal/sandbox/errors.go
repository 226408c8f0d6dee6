package sandbox

import "fmt"

// Cause classifies why an execution produced no table.
type Cause string

const (
	CauseLaunchFailure  Cause = "launch_failure"
	CauseProcessFailure Cause = "process_failure"
	CauseTimeout        Cause = "timeout"
	CauseCanceled       Cause = "canceled"
	CauseNoResult       Cause = "no_result"
	CauseParseFailure   Cause = "parse_failure"
	CauseBusy           Cause = "busy"
)

// ExecError is returned for every failed execution. Message is safe to show to the user.
type ExecError struct {
	Cause   Cause
	Message string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Cause, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func newExecError(cause Cause, message string, err error) *ExecError {
	return &ExecError{Cause: cause, Message: message, Err: err}
}
