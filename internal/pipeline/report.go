package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/catobuild/internal/metrics"
	"git.home.luguber.info/inful/catobuild/internal/version"
)

// ReportSchemaVersion is bumped whenever the serialized report changes shape.
const ReportSchemaVersion = 1

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// Report captures what happened during one build.
type Report struct {
	SchemaVersion     int
	BuildID           string
	Version           string
	ToolchainRevision string // commit of the CATO installation, if it is a git checkout
	ConfigHash        string
	Shape             string
	Input             string
	Executable        string
	DryRun            bool
	Start             time.Time
	End               time.Time
	Stages            []StageRecord
	Errors            []error // fatal errors causing build abortion (at most one)
	Warnings          []error // feature warnings and tolerated stage failures
	Outcome           BuildOutcome
	FailedPhase       string
	ExitCode          int
}

// NewReport starts a report. An empty id gets a fresh random one.
func NewReport(id string) *Report {
	if id == "" {
		id = uuid.NewString()
	}
	return &Report{
		SchemaVersion: ReportSchemaVersion,
		BuildID:       id,
		Version:       version.Version,
		Start:         time.Now(),
	}
}

// AddWarning records a non-fatal problem.
func (r *Report) AddWarning(err error) { r.Warnings = append(r.Warnings, err) }

// AddError records the error that stopped the build.
func (r *Report) AddError(err error) {
	r.Errors = append(r.Errors, err)
	var se *StageError
	if errors.As(err, &se) {
		r.FailedPhase = se.Phase
		r.ExitCode = se.ExitCode()
	} else if r.ExitCode == 0 {
		r.ExitCode = 1
	}
}

// RecordStage appends a stage record and emits its result metric.
func (r *Report) RecordStage(rec StageRecord, recorder metrics.Recorder) {
	r.Stages = append(r.Stages, rec)
	if recorder == nil {
		return
	}
	switch rec.Result {
	case StageResultSuccess:
		recorder.IncStageResult(string(rec.Name), metrics.ResultSuccess)
	case StageResultWarning:
		recorder.IncStageResult(string(rec.Name), metrics.ResultWarning)
	case StageResultFatal:
		recorder.IncStageResult(string(rec.Name), metrics.ResultFatal)
	case StageResultCanceled:
		recorder.IncStageResult(string(rec.Name), metrics.ResultCanceled)
	case StageResultSkipped:
		// not counted
	}
}

// Finish sets the end time of the report.
func (r *Report) Finish() { r.End = time.Now() }

// DeriveOutcome sets Outcome based on recorded errors and warnings.
func (r *Report) DeriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("build=%s shape=%s stages=%d duration=%s errors=%d warnings=%d outcome=%s",
		r.BuildID, r.Shape, r.executedStages(), dur.Truncate(time.Millisecond), len(r.Errors), len(r.Warnings), r.Outcome)
}

func (r *Report) executedStages() int {
	n := 0
	for _, s := range r.Stages {
		if s.Result != StageResultSkipped && s.Result != StageResultCanceled {
			n++
		}
	}
	return n
}

// Persist writes the report to path atomically. A .yaml or .yml extension
// selects YAML; anything else is written as JSON.
func (r *Report) Persist(path string) error {
	if r.End.IsZero() {
		r.Finish()
		r.DeriveOutcome()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("ensure directory for report: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r.SanitizedCopy())
	default:
		data, err = json.MarshalIndent(r.SanitizedCopy(), "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename report: %w", err)
	}
	return nil
}

// SanitizedCopy returns a serializable copy with errors converted to strings.
func (r *Report) SanitizedCopy() *ReportSerializable {
	s := &ReportSerializable{
		SchemaVersion:     r.SchemaVersion,
		BuildID:           r.BuildID,
		Version:           r.Version,
		ToolchainRevision: r.ToolchainRevision,
		ConfigHash:        r.ConfigHash,
		Shape:             r.Shape,
		Input:             r.Input,
		Executable:        r.Executable,
		DryRun:            r.DryRun,
		Start:             r.Start,
		End:               r.End,
		Stages:            r.Stages,
		Errors:            make([]string, len(r.Errors)),
		Warnings:          make([]string, len(r.Warnings)),
		Outcome:           string(r.Outcome),
		FailedPhase:       r.FailedPhase,
		ExitCode:          r.ExitCode,
	}
	if s.Stages == nil {
		s.Stages = []StageRecord{}
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}

// ReportSerializable mirrors Report with string errors for JSON and YAML output.
type ReportSerializable struct {
	SchemaVersion     int           `json:"schema_version" yaml:"schema_version"`
	BuildID           string        `json:"build_id" yaml:"build_id"`
	Version           string        `json:"catobuild_version" yaml:"catobuild_version"`
	ToolchainRevision string        `json:"toolchain_revision,omitempty" yaml:"toolchain_revision,omitempty"`
	ConfigHash        string        `json:"config_hash,omitempty" yaml:"config_hash,omitempty"`
	Shape             string        `json:"shape" yaml:"shape"`
	Input             string        `json:"input" yaml:"input"`
	Executable        string        `json:"executable" yaml:"executable"`
	DryRun            bool          `json:"dry_run" yaml:"dry_run"`
	Start             time.Time     `json:"start" yaml:"start"`
	End               time.Time     `json:"end" yaml:"end"`
	Stages            []StageRecord `json:"stages" yaml:"stages"`
	Errors            []string      `json:"errors" yaml:"errors"`
	Warnings          []string      `json:"warnings" yaml:"warnings"`
	Outcome           string        `json:"outcome" yaml:"outcome"`
	FailedPhase       string        `json:"failed_phase,omitempty" yaml:"failed_phase,omitempty"`
	ExitCode          int           `json:"exit_code" yaml:"exit_code"`
}
