// Package pipeline turns an effective configuration into an ordered list of
// toolchain invocations and runs them, deciding after each one whether the
// build continues.
package pipeline

import (
	"time"

	"git.home.luguber.info/inful/catobuild/internal/runner"
)

// StageName is a stable identifier for a pipeline stage.
type StageName string

// Canonical stage names.
const (
	StageEmitIR      StageName = "emit_ir"
	StageTransformIR StageName = "transform_ir"
	StageAssemble    StageName = "assemble"
	StageCompile     StageName = "compile"
	StageLink        StageName = "link"
	StageCleanup     StageName = "cleanup"
)

// Policy decides what a nonzero exit status of a stage means for the build.
type Policy string

const (
	PolicyFatal Policy = "fatal" // abort the build
	PolicyWarn  Policy = "warn"  // log and continue
)

// Kind selects how a stage is executed.
type Kind string

const (
	KindExec    Kind = "exec"    // run Command as a child process
	KindCleanup Kind = "cleanup" // remove Remove in-process; Command is for display only
)

// Stage is one step of the pipeline.
type Stage struct {
	Name    StageName
	Phase   string // human-readable, used in error messages
	Command runner.Command
	Policy  Policy
	Kind    Kind
	Remove  []string
}

// StageResult captures the outcome of a stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
	StageResultSkipped  StageResult = "skipped"
)

// StageRecord is what the report keeps about one stage.
type StageRecord struct {
	Name     StageName     `json:"name" yaml:"name"`
	Phase    string        `json:"phase" yaml:"phase"`
	Policy   Policy        `json:"policy" yaml:"policy"`
	Command  string        `json:"command" yaml:"command"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
	Result   StageResult   `json:"result" yaml:"result"`
}
