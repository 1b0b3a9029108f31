package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/catobuild/internal/config"
	ferrors "git.home.luguber.info/inful/catobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/catobuild/internal/logfields"
	"git.home.luguber.info/inful/catobuild/internal/metrics"
	"git.home.luguber.info/inful/catobuild/internal/pipeline"
	"git.home.luguber.info/inful/catobuild/internal/runner"
	"git.home.luguber.info/inful/catobuild/internal/toolchain"
)

// BuildFlags are shared by the build and watch commands.
type BuildFlags struct {
	Input  string `arg:"" name:"input-file" help:"C source file" type:"existingfile"`
	Output string `short:"o" help:"Name of the output executable; intermediates share its stem" default:"translated"`

	Logging bool   `short:"l" group:"Feedback" help:"Enable logging in the produced binary"`
	DebugPM bool   `name:"debug-pm" group:"Feedback" help:"Pass --debug-pass-manager to the pass"`
	Debug   bool   `group:"Feedback" help:"Pass --debug to the pass"`
	DryRun  bool   `name:"dry-run" group:"Feedback" help:"Print the commands that would build the application without running them"`
	Report  string `group:"Feedback" help:"Write a build report (.json or .yaml)" type:"path"`
	Metrics string `name:"metrics-file" group:"Feedback" help:"Write Prometheus metrics in text format" type:"path"`

	EnableOpenMP  bool   `name:"enable-openmp" group:"CATO controls" help:"Detect and insert OpenMP in the original code (not implemented)"`
	EnableNetCDF  bool   `name:"enable-netcdf" group:"CATO controls" help:"Replace netCDF operations to enable parallel I/O (not implemented)"`
	DisableOpenMP bool   `name:"disable-openmp" group:"CATO controls" help:"Disable OpenMP handling (not implemented)"`
	Pipeline      string `group:"CATO controls" help:"Pipeline shape: split (emit IR, transform, lower) or fused (pass loaded into the front end)" placeholder:"split|fused"`
	Assemble      string `group:"CATO controls" help:"How the split pipeline lowers transformed IR" placeholder:"object|bitcode"`
	Cleanup       bool   `group:"CATO controls" help:"Remove the lowered object or bitcode after linking"`
	LinkIORuntime bool   `name:"link-io-runtime" group:"CATO controls" help:"Link the parallel I/O runtime library"`

	CXXFlags    []string `name:"cxx-flags" aliases:"cflags" sep:"none" group:"Compiler flags" help:"Extra compile flags, appended after CXXFLAGS/CFLAGS (repeatable, shell-quoted)"`
	LDFlags     []string `name:"ldflags" sep:"none" group:"Compiler flags" help:"Extra link flags, appended after LDFLAGS/LDLIBS (repeatable)"`
	CFlagsFrom  []string `name:"cflags-from" sep:"none" group:"Compiler flags" help:"Command whose output is appended to the compile flags, e.g. 'nc-config --cflags'"`
	LDFlagsFrom []string `name:"ldflags-from" sep:"none" group:"Compiler flags" help:"Command whose output is appended to the link flags, e.g. 'nc-config --libs'"`
}

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	BuildFlags `embed:""`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	_, err := RunBuild(g.context(), g, root, b.BuildFlags)
	return err
}

// options converts parsed flags into resolver options.
func (f BuildFlags) options(verbose bool) config.Options {
	return config.Options{
		Input:            f.Input,
		Output:           f.Output,
		Logging:          f.Logging,
		Debug:            f.Debug,
		DebugPassManager: f.DebugPM,
		Verbose:          verbose,
		DryRun:           f.DryRun,
		EnableOpenMP:     f.EnableOpenMP,
		EnableNetCDF:     f.EnableNetCDF,
		DisableOpenMP:    f.DisableOpenMP,
		CompileFlags:     f.CXXFlags,
		LinkFlags:        f.LDFlags,
		CompileFlagsFrom: f.CFlagsFrom,
		LinkFlagsFrom:    f.LDFlagsFrom,
		Shape:            f.Pipeline,
		Assemble:         f.Assemble,
		Cleanup:          f.Cleanup,
		LinkIORuntime:    f.LinkIORuntime,
	}
}

// RunBuild resolves the configuration and runs the pipeline once. The report
// is nil when the build failed before any stage was planned.
func RunBuild(ctx context.Context, g *Global, root *CLI, f BuildFlags) (*pipeline.Report, error) {
	file, _, err := loadProjectFile(root.Config, g.Env)
	if err != nil {
		return nil, err
	}

	opts := f.options(root.Verbose)
	exec := &runner.Exec{
		Out:    g.stdout(),
		Err:    g.stderr(),
		DryRun: opts.DryRun,
		Echo:   opts.Verbose,
		Env:    g.Env.Pairs(),
	}

	eff, warnings, err := config.Resolve(ctx, opts, g.Env, exec, file)
	if err != nil {
		return nil, err
	}

	recorder, prom := newRecorder(f.Metrics)
	report := pipeline.NewReport("")
	report.Shape = string(eff.Shape)
	report.Input = eff.Paths.Input
	report.Executable = eff.Paths.Executable
	report.ConfigHash = eff.Snapshot()
	if rev, err := toolchain.Revision(eff.Toolchain.Root); err != nil {
		slog.Debug("Toolchain revision unavailable", logfields.Path(eff.Toolchain.Root), logfields.Error(err))
	} else {
		report.ToolchainRevision = rev
	}

	for _, w := range warnings {
		fmt.Fprintf(g.stderr(), "catobuild: warning: %s\n", w.Message)
		slog.Warn("Requested feature has no effect", logfields.BuildID(report.BuildID), logfields.Feature(w.Feature), slog.String("detail", w.Message))
		recorder.IncFeatureWarning(w.Feature)
		report.AddWarning(w.Err())
	}

	stages := pipeline.Stages(eff)
	slog.Info("Starting build",
		logfields.BuildID(report.BuildID),
		logfields.Input(eff.Paths.Input),
		logfields.Output(eff.Paths.Executable),
		logfields.Shape(string(eff.Shape)),
		slog.Int("stages", len(stages)),
		slog.Bool("dry_run", eff.DryRun))

	driver := &pipeline.Driver{
		Runner:   exec,
		Observer: pipeline.RecorderObserver{Recorder: recorder},
		Recorder: recorder,
		Out:      g.stdout(),
		DryRun:   eff.DryRun,
		Echo:     eff.Verbose,
		Report:   report,
	}
	report, runErr := driver.Run(ctx, stages)

	if f.Report != "" {
		if err := report.Persist(f.Report); err != nil {
			slog.Warn("Failed to write build report", logfields.Path(f.Report), logfields.Error(err))
		}
	}
	if prom != nil {
		if err := prom.WriteTextfile(f.Metrics); err != nil {
			slog.Warn("Failed to write metrics", logfields.Path(f.Metrics), logfields.Error(err))
		}
	}
	return report, classifyBuildError(runErr)
}

// classifyBuildError attaches a CLI category to a stage failure. The stage
// error stays in the chain, so its exit code still decides the process exit.
func classifyBuildError(err error) error {
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		return err
	}
	b := ferrors.NewError(ferrors.CategoryStage, "build failed").Fatal().WithCause(se)
	if se.Launch {
		b = ferrors.LaunchError("toolchain program could not be started").WithCause(se)
	}
	return b.
		WithContext(logfields.KeyStage, string(se.Stage)).
		WithContext(logfields.KeyPhase, se.Phase).
		WithContext(logfields.KeyExitCode, se.ExitCode()).
		Build()
}

func newRecorder(metricsFile string) (metrics.Recorder, *metrics.PrometheusRecorder) {
	if metricsFile == "" {
		return metrics.NoopRecorder{}, nil
	}
	pr := metrics.NewPrometheusRecorder(nil)
	return pr, pr
}
