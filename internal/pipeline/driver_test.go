package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/catobuild/internal/runner"
)

// scriptedRunner returns exit codes by invocation index and records every
// command it was asked to run.
type scriptedRunner struct {
	codes  map[int]int
	errs   map[int]error
	onRun  func(i int)
	called []runner.Command
}

func (s *scriptedRunner) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	i := len(s.called)
	s.called = append(s.called, cmd)
	if s.onRun != nil {
		s.onRun(i)
	}
	if err, ok := s.errs[i]; ok {
		return runner.Result{ExitCode: -1}, err
	}
	return runner.Result{ExitCode: s.codes[i]}, nil
}

type recordingObserver struct {
	started   []StageName
	completed []StageResult
	report    *Report
}

func (o *recordingObserver) OnStageStart(s StageName) { o.started = append(o.started, s) }
func (o *recordingObserver) OnStageComplete(_ StageName, _ time.Duration, r StageResult) {
	o.completed = append(o.completed, r)
}
func (o *recordingObserver) OnBuildComplete(r *Report) { o.report = r }

func TestDriverRunsAllStages(t *testing.T) {
	stages := Stages(testConfig(t))
	r := &scriptedRunner{}
	obs := &recordingObserver{}

	report, err := (&Driver{Runner: r, Observer: obs}).Run(context.Background(), stages)
	require.NoError(t, err)
	require.Len(t, r.called, len(stages))
	for i, st := range stages {
		require.Equal(t, st.Command, r.called[i])
	}
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Zero(t, report.ExitCode)
	require.Len(t, obs.started, len(stages))
	require.Same(t, report, obs.report)
	require.NotEmpty(t, report.BuildID)
}

func TestDriverFatalStageStopsPipeline(t *testing.T) {
	stages := Stages(testConfig(t))
	for k := 1; k <= len(stages); k++ {
		r := &scriptedRunner{codes: map[int]int{k - 1: 3}}

		report, err := (&Driver{Runner: r}).Run(context.Background(), stages)
		require.Error(t, err)
		require.Len(t, r.called, k, "fatal stage %d must be the last invocation", k)

		var se *StageError
		require.ErrorAs(t, err, &se)
		require.Equal(t, StageErrorFatal, se.Kind)
		require.Equal(t, stages[k-1].Name, se.Stage)
		require.Equal(t, stages[k-1].Phase, se.Phase)
		require.Equal(t, 3, se.ExitCode())
		require.Contains(t, err.Error(), "exit code 3")

		require.Equal(t, OutcomeFailed, report.Outcome)
		require.Equal(t, stages[k-1].Phase, report.FailedPhase)
		require.Equal(t, 3, report.ExitCode)
		require.Len(t, report.Stages, len(stages))
		for _, rec := range report.Stages[k:] {
			require.Equal(t, StageResultSkipped, rec.Result)
		}
	}
}

func TestDriverWarnStageContinues(t *testing.T) {
	stages := []Stage{
		{Name: "lint", Phase: "lint", Command: runner.NewCommand("lint"), Policy: PolicyWarn, Kind: KindExec},
		{Name: StageLink, Phase: PhaseLink, Command: runner.NewCommand("mpicc"), Policy: PolicyFatal, Kind: KindExec},
	}
	r := &scriptedRunner{codes: map[int]int{0: 2}}

	report, err := (&Driver{Runner: r}).Run(context.Background(), stages)
	require.NoError(t, err)
	require.Len(t, r.called, 2)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Len(t, report.Warnings, 1)
	require.Equal(t, StageResultWarning, report.Stages[0].Result)
}

func TestDriverLaunchErrorAlwaysFatal(t *testing.T) {
	for _, policy := range []Policy{PolicyFatal, PolicyWarn} {
		stages := []Stage{
			{Name: "first", Phase: "first", Command: runner.NewCommand("missing-tool"), Policy: policy, Kind: KindExec},
			{Name: "second", Phase: "second", Command: runner.NewCommand("true"), Policy: PolicyFatal, Kind: KindExec},
		}
		launch := &runner.LaunchError{Program: "missing-tool", Err: errors.New("executable file not found in $PATH")}
		r := &scriptedRunner{errs: map[int]error{0: launch}}

		var logs bytes.Buffer
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
		report, err := (&Driver{Runner: r}).Run(context.Background(), stages)
		slog.SetDefault(prev)
		require.Error(t, err, "policy %s", policy)
		require.Len(t, r.called, 1)
		require.Equal(t, 127, report.Stages[0].ExitCode)
		require.Equal(t, 127, report.ExitCode)
		require.Contains(t, logs.String(), "exit_code=127")
		require.Contains(t, logs.String(), "policy="+string(policy))
		require.NotContains(t, logs.String(), "exit_code=-1")

		var se *StageError
		require.ErrorAs(t, err, &se)
		require.True(t, se.Launch)
		require.Equal(t, StageErrorFatal, se.Kind)
		require.Equal(t, 127, se.ExitCode())
		require.ErrorIs(t, err, runner.ErrLaunch)
	}
}

func TestDriverCanceledBeforeNextStage(t *testing.T) {
	stages := Stages(testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptedRunner{onRun: func(i int) {
		if i == 1 {
			cancel()
		}
	}}

	report, err := (&Driver{Runner: r}).Run(ctx, stages)
	require.Error(t, err)
	require.Len(t, r.called, 2, "the running stage completes, nothing else starts")

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageErrorCanceled, se.Kind)
	require.Equal(t, stages[2].Name, se.Stage)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, OutcomeCanceled, report.Outcome)
	require.Equal(t, 1, se.ExitCode())
}

func TestDriverDryRunMatchesRealCommands(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cleanup = true
	stages := Stages(cfg)

	var dryOut bytes.Buffer
	dry := &runner.Exec{Out: &dryOut, DryRun: true}
	_, err := (&Driver{Runner: dry, Out: &dryOut, DryRun: true}).Run(context.Background(), stages)
	require.NoError(t, err)

	live := &scriptedRunner{}
	var realOut bytes.Buffer
	_, err = (&Driver{Runner: live, Out: &realOut, Echo: true, remove: func(string) error { return nil }}).Run(context.Background(), stages)
	require.NoError(t, err)

	printed := strings.Split(strings.TrimSuffix(dryOut.String(), "\n"), "\n")
	require.Len(t, printed, len(stages))
	for i, cmd := range live.called {
		require.Equal(t, cmd.String(), printed[i])
	}
	require.Equal(t, "rm -f translated.o", printed[len(printed)-1])
	require.Equal(t, "rm -f translated.o\n", realOut.String())
}

func TestDriverCleanupRemovesArtifacts(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "app.o")
	require.NoError(t, os.WriteFile(obj, []byte("obj"), 0o600))
	missing := filepath.Join(dir, "app.bc")

	stages := []Stage{cleanupStage(obj, missing)}
	report, err := (&Driver{Runner: &scriptedRunner{}}).Run(context.Background(), stages)
	require.NoError(t, err)
	require.NoFileExists(t, obj)
	require.Equal(t, OutcomeSuccess, report.Outcome)
}

func TestDriverCleanupFailureWarns(t *testing.T) {
	stages := []Stage{cleanupStage("locked.o")}
	d := &Driver{
		Runner: &scriptedRunner{},
		remove: func(string) error { return os.ErrPermission },
	}

	report, err := d.Run(context.Background(), stages)
	require.NoError(t, err)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.ErrorIs(t, report.Warnings[0], os.ErrPermission)
}

func TestDriverDryRunKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "app.o")
	require.NoError(t, os.WriteFile(obj, []byte("obj"), 0o600))

	var out bytes.Buffer
	_, err := (&Driver{Runner: &scriptedRunner{}, Out: &out, DryRun: true}).Run(context.Background(), []Stage{cleanupStage(obj)})
	require.NoError(t, err)
	require.FileExists(t, obj)
	require.Contains(t, out.String(), "rm -f")
}
