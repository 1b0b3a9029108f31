package pipeline

import (
	"fmt"
)

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation before launch.
)

// Exit status used when a tool could not be started, matching shells.
const launchExitCode = 127

// StageError reports a stage that did not succeed.
type StageError struct {
	Kind   StageErrorKind
	Stage  StageName
	Phase  string
	Code   int  // tool exit status; zero when the tool never ran
	Launch bool // the tool could not be started
	Err    error
}

func (e *StageError) Error() string {
	switch {
	case e.Kind == StageErrorCanceled:
		return fmt.Sprintf("%s canceled before it started: %v", e.Phase, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
	default:
		return fmt.Sprintf("%s failed with exit code %d", e.Phase, e.Code)
	}
}

func (e *StageError) Unwrap() error { return e.Err }

// ExitCode is the status the process should exit with. It is the tool's own
// status, or 127 when the tool could not be launched, and 1 otherwise.
func (e *StageError) ExitCode() int {
	switch {
	case e.Launch:
		return launchExitCode
	case e.Code > 0:
		return e.Code
	default:
		return 1
	}
}

// NewFatalStageError creates a fatal error for a stage that exited nonzero.
func NewFatalStageError(st Stage, code int) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: st.Name, Phase: st.Phase, Code: code}
}

// NewWarnStageError creates a warning for a stage whose failure is tolerated.
func NewWarnStageError(st Stage, code int, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: st.Name, Phase: st.Phase, Code: code, Err: err}
}

// NewLaunchStageError creates a fatal error for a tool that could not start.
func NewLaunchStageError(st Stage, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: st.Name, Phase: st.Phase, Launch: true, Err: err}
}

// NewCanceledStageError creates an error for a stage that was never started.
func NewCanceledStageError(st Stage, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: st.Name, Phase: st.Phase, Err: err}
}
