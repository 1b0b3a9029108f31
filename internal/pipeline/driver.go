package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/catobuild/internal/logfields"
	"git.home.luguber.info/inful/catobuild/internal/metrics"
	"git.home.luguber.info/inful/catobuild/internal/runner"
)

// Driver executes stages strictly one after another.
//
// Before each stage the context is checked; a canceled context stops the
// pipeline without launching anything further. A stage that has started
// always runs to completion. Stages are attempted at most once.
type Driver struct {
	Runner   runner.Runner
	Observer BuildObserver
	Recorder metrics.Recorder

	// Out receives the lines printed for in-process cleanup when DryRun or
	// Echo is set. Defaults to os.Stdout.
	Out    io.Writer
	DryRun bool
	Echo   bool

	// Report, when set, is filled in instead of a fresh one. Callers use it
	// to attach metadata and warnings collected before the first stage.
	Report *Report

	remove func(string) error
}

func (d *Driver) observer() BuildObserver {
	if d.Observer == nil {
		return NoopObserver{}
	}
	return d.Observer
}

func (d *Driver) recorder() metrics.Recorder {
	if d.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return d.Recorder
}

func (d *Driver) out() io.Writer {
	if d.Out == nil {
		return os.Stdout
	}
	return d.Out
}

// Run executes stages in order and returns the report of the build. The
// returned error is nil on success; otherwise it is the *StageError of the
// stage that stopped the build.
func (d *Driver) Run(ctx context.Context, stages []Stage) (*Report, error) {
	report := d.Report
	if report == nil {
		report = NewReport("")
	}
	report.DryRun = d.DryRun
	log := slog.With(logfields.BuildID(report.BuildID))
	obs := d.observer()
	rec := d.recorder()

	finish := func(err error) (*Report, error) {
		if err != nil {
			report.AddError(err)
		}
		report.Finish()
		report.DeriveOutcome()
		obs.OnBuildComplete(report)
		log.Info("Build finished", slog.String("summary", report.Summary()))
		return report, err
	}

	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			se := NewCanceledStageError(st, err)
			log.Warn("Build canceled; not starting further stages", logfields.Stage(string(st.Name)))
			report.RecordStage(StageRecord{
				Name: st.Name, Phase: st.Phase, Policy: st.Policy,
				Command: st.Command.String(), Result: StageResultCanceled,
			}, rec)
			obs.OnStageComplete(st.Name, 0, StageResultCanceled)
			d.skip(report, stages[i+1:])
			return finish(se)
		}

		obs.OnStageStart(st.Name)
		log.Debug("Stage starting", logfields.Stage(string(st.Name)), logfields.Command(st.Command.String()))

		t0 := time.Now()
		res, err := d.execute(ctx, st)
		dur := time.Since(t0)

		var stageErr *StageError
		switch {
		case err != nil && runner.IsLaunchError(err):
			var le *runner.LaunchError
			if errors.As(err, &le) {
				rec.IncLaunchFailure(le.Program)
			}
			stageErr = NewLaunchStageError(st, err)
		case err != nil && st.Policy == PolicyWarn:
			stageErr = NewWarnStageError(st, res.ExitCode, err)
		case err != nil:
			stageErr = &StageError{Kind: StageErrorFatal, Stage: st.Name, Phase: st.Phase, Code: res.ExitCode, Err: err}
		case !res.Success() && st.Policy == PolicyWarn:
			stageErr = NewWarnStageError(st, res.ExitCode, nil)
		case !res.Success():
			stageErr = NewFatalStageError(st, res.ExitCode)
		}

		code := res.ExitCode
		if stageErr != nil && stageErr.Launch {
			code = stageErr.ExitCode()
		}
		record := StageRecord{
			Name:     st.Name,
			Phase:    st.Phase,
			Policy:   st.Policy,
			Command:  st.Command.String(),
			ExitCode: code,
			Duration: dur,
		}
		attrs := []any{
			logfields.Stage(string(st.Name)),
			logfields.Phase(st.Phase),
			logfields.Policy(string(st.Policy)),
			logfields.ExitCode(code),
			logfields.DurationMS(float64(dur.Milliseconds())),
		}

		switch {
		case stageErr == nil:
			record.Result = StageResultSuccess
			log.Info("Stage complete", attrs...)
		case stageErr.Kind == StageErrorWarning:
			record.Result = StageResultWarning
			report.AddWarning(stageErr)
			log.Warn("Stage failed; continuing", append(attrs, logfields.Error(stageErr))...)
		default:
			record.Result = StageResultFatal
			log.Error("Stage failed; aborting build", append(attrs, logfields.Error(stageErr))...)
		}

		report.RecordStage(record, rec)
		obs.OnStageComplete(st.Name, dur, record.Result)

		if record.Result == StageResultFatal {
			d.skip(report, stages[i+1:])
			return finish(stageErr)
		}
	}

	return finish(nil)
}

func (d *Driver) skip(report *Report, rest []Stage) {
	for _, st := range rest {
		report.RecordStage(StageRecord{
			Name: st.Name, Phase: st.Phase, Policy: st.Policy,
			Command: st.Command.String(), Result: StageResultSkipped,
		}, nil)
	}
}

func (d *Driver) execute(ctx context.Context, st Stage) (runner.Result, error) {
	switch st.Kind {
	case KindCleanup:
		return d.cleanup(st)
	case KindExec, "":
		if d.Runner == nil {
			return runner.Result{}, errors.New("pipeline: driver has no runner")
		}
		return d.Runner.Run(ctx, st.Command)
	default:
		return runner.Result{}, fmt.Errorf("pipeline: unknown stage kind %q", st.Kind)
	}
}

// cleanup removes the stage's files. Files that are already gone are fine.
func (d *Driver) cleanup(st Stage) (runner.Result, error) {
	if d.DryRun || d.Echo {
		fmt.Fprintln(d.out(), st.Command.String())
	}
	if d.DryRun {
		return runner.Result{}, nil
	}
	remove := d.remove
	if remove == nil {
		remove = os.Remove
	}
	var errs []error
	for _, p := range st.Remove {
		if err := remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return runner.Result{ExitCode: 1}, err
	}
	return runner.Result{}, nil
}
