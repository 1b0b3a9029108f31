package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	ferrors "git.home.luguber.info/inful/catobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/catobuild/internal/runner"
	"git.home.luguber.info/inful/catobuild/internal/toolchain"
)

// Options are the user's requests for one invocation, as parsed from the
// command line.
type Options struct {
	Input  string
	Output string

	Logging          bool
	Debug            bool
	DebugPassManager bool
	Verbose          bool
	DryRun           bool

	EnableOpenMP  bool
	EnableNetCDF  bool
	DisableOpenMP bool

	// Flag groups, each a shell-style word list, in command-line order.
	CompileFlags []string
	LinkFlags    []string
	// Query command lines whose output is appended to the flags.
	CompileFlagsFrom []string
	LinkFlagsFrom    []string

	Shape         string // empty defers to the project file, then split
	Assemble      string // empty defers to the project file, then object
	Cleanup       bool
	LinkIORuntime bool
}

// Tools names the external programs the pipeline runs.
type Tools struct {
	Wrapper     string
	WrapperArgs []string
	Optimizer   string
	Assembler   string
	PassName    string
}

// Effective is the resolved configuration. It is built once by Resolve and
// passed by value; nothing modifies it afterwards.
type Effective struct {
	CompileFlags []string
	LinkFlags    []string
	Toolchain    toolchain.Layout
	Tools        Tools
	Paths        ArtifactPaths

	Logging       bool
	OpenMP        bool
	DisableOpenMP bool
	NetCDF        bool

	DryRun  bool
	Verbose bool

	Debug            bool
	DebugPassManager bool

	Shape         Shape
	Assemble      AssembleMode
	Cleanup       bool
	LinkIORuntime bool
}

// Resolve computes the effective configuration. file may be nil. Queries run
// through q even for dry runs so that a dry run prints exactly the commands
// a real build would execute.
func Resolve(ctx context.Context, opts Options, env Environment, q runner.Querier, file *File) (Effective, []FeatureWarning, error) {
	if file == nil {
		file = &File{}
	}

	root := env.Get(EnvCatoRoot)
	if root == "" {
		msg := EnvCatoRoot + " is not set"
		return Effective{}, nil, ferrors.ConfigError(msg).
			WithContext("variable", EnvCatoRoot).
			WithContext("hint", "point it at the CATO checkout that contains src/build/cato").
			Build()
	}
	layout, err := toolchain.Resolve(root)
	if err != nil {
		return Effective{}, nil, ferrors.WrapError(err, ferrors.CategoryConfig, "cannot resolve "+EnvCatoRoot).
			Fatal().
			WithContext("path", root).
			Build()
	}

	paths, err := NewArtifactPaths(opts.Input, opts.Output)
	if err != nil {
		return Effective{}, nil, err
	}

	shape, err := pickShape(opts.Shape, file.Pipeline)
	if err != nil {
		return Effective{}, nil, err
	}
	assemble, err := pickAssembleMode(opts.Assemble, file.Assemble)
	if err != nil {
		return Effective{}, nil, err
	}

	compile := DefaultCompileFlags()
	if file.DefaultCFlags != nil {
		compile = slices.Clone(file.DefaultCFlags)
	}
	var link []string

	for _, name := range []string{EnvCXXFlags, EnvCFlags} {
		if compile, err = appendSplit(compile, env.Get(name), name); err != nil {
			return Effective{}, nil, err
		}
	}
	for _, name := range []string{EnvLDFlags, EnvLDLibs} {
		if link, err = appendSplit(link, env.Get(name), name); err != nil {
			return Effective{}, nil, err
		}
	}

	for _, group := range opts.CompileFlags {
		if compile, err = appendSplit(compile, group, "--cxx-flags"); err != nil {
			return Effective{}, nil, err
		}
	}
	for _, group := range opts.LinkFlags {
		if link, err = appendSplit(link, group, "--ldflags"); err != nil {
			return Effective{}, nil, err
		}
	}

	compileQueries := append(slices.Clone(file.Queries.CFlags), opts.CompileFlagsFrom...)
	for _, line := range compileQueries {
		if compile, err = appendQuery(ctx, q, compile, line); err != nil {
			return Effective{}, nil, err
		}
	}
	linkQueries := append(slices.Clone(file.Queries.LDFlags), opts.LinkFlagsFrom...)
	for _, line := range linkQueries {
		if link, err = appendQuery(ctx, q, link, line); err != nil {
			return Effective{}, nil, err
		}
	}

	eff := Effective{
		CompileFlags:     compile,
		LinkFlags:        link,
		Toolchain:        layout,
		Tools:            mergeTools(DefaultTools(), file.Tools),
		Paths:            paths,
		Logging:          opts.Logging,
		OpenMP:           opts.EnableOpenMP,
		DisableOpenMP:    opts.DisableOpenMP,
		NetCDF:           opts.EnableNetCDF,
		DryRun:           opts.DryRun,
		Verbose:          opts.Verbose,
		Debug:            opts.Debug,
		DebugPassManager: opts.DebugPassManager,
		Shape:            shape,
		Assemble:         assemble,
		Cleanup:          opts.Cleanup || file.Cleanup,
		LinkIORuntime:    opts.LinkIORuntime || file.LinkIORuntime,
	}
	return eff, featureWarnings(opts, compile), nil
}

func pickShape(cli, file string) (Shape, error) {
	for _, v := range []string{cli, file} {
		if v == "" {
			continue
		}
		if s := NormalizeShape(v); s != "" {
			return s, nil
		}
		return "", ferrors.ValidationError("unknown pipeline shape").
			WithContext("pipeline", v).
			WithContext("valid", shapes.ValidKeys()).
			Build()
	}
	return ShapeSplit, nil
}

func pickAssembleMode(cli, file string) (AssembleMode, error) {
	for _, v := range []string{cli, file} {
		if v == "" {
			continue
		}
		if m := NormalizeAssembleMode(v); m != "" {
			return m, nil
		}
		return "", ferrors.ValidationError("unknown assemble mode").
			WithContext("assemble", v).
			WithContext("valid", assembleModes.ValidKeys()).
			Build()
	}
	return AssembleObject, nil
}

func mergeTools(base Tools, over FileTools) Tools {
	if over.Wrapper != "" {
		base.Wrapper = over.Wrapper
	}
	if over.WrapperArgs != nil {
		base.WrapperArgs = slices.Clone(over.WrapperArgs)
	}
	if over.Optimizer != "" {
		base.Optimizer = over.Optimizer
	}
	if over.Assembler != "" {
		base.Assembler = over.Assembler
	}
	if over.PassName != "" {
		base.PassName = over.PassName
	}
	return base
}

func appendSplit(dst []string, words, source string) ([]string, error) {
	if strings.TrimSpace(words) == "" {
		return dst, nil
	}
	parts, err := shellquote.Split(words)
	if err != nil {
		return dst, ferrors.WrapError(err, ferrors.CategoryConfig, "cannot split flags").
			Fatal().
			WithContext("source", source).
			WithContext("value", words).
			Build()
	}
	return append(dst, parts...), nil
}

func appendQuery(ctx context.Context, q runner.Querier, dst []string, line string) ([]string, error) {
	argv, err := shellquote.Split(line)
	if err != nil || len(argv) == 0 {
		return dst, ferrors.ConfigError("invalid configuration query").
			WithCause(err).
			WithContext("query", line).
			Build()
	}
	res, err := q.Capture(ctx, runner.NewCommand(argv[0], argv[1:]...))
	if err != nil {
		return dst, ferrors.WrapError(err, ferrors.CategoryConfig, "configuration query failed").
			Fatal().
			WithContext("query", line).
			Build()
	}
	if !res.Success() {
		return dst, ferrors.ConfigError("configuration query failed").
			WithContext("query", line).
			WithContext("exit_code", res.ExitCode).
			Build()
	}
	return appendSplit(dst, res.Output, line)
}

// Snapshot returns a stable hash of everything that shapes the generated
// commands. Two configurations with equal snapshots produce identical stage
// commands.
func (e Effective) Snapshot() string {
	h := sha256.New()
	w := func(parts ...string) {
		h.Write([]byte(strings.Join(parts, "=")))
		h.Write([]byte{0})
	}
	w("compile", strings.Join(e.CompileFlags, "\x1f"))
	w("link", strings.Join(e.LinkFlags, "\x1f"))
	w("toolchain.root", e.Toolchain.Root)
	w("tools.wrapper", e.Tools.Wrapper, strings.Join(e.Tools.WrapperArgs, "\x1f"))
	w("tools.optimizer", e.Tools.Optimizer)
	w("tools.assembler", e.Tools.Assembler)
	w("tools.pass", e.Tools.PassName)
	w("paths.input", e.Paths.Input)
	w("paths.executable", e.Paths.Executable)
	w("logging", strconv.FormatBool(e.Logging))
	w("debug", strconv.FormatBool(e.Debug), strconv.FormatBool(e.DebugPassManager))
	w("shape", string(e.Shape))
	w("assemble", string(e.Assemble))
	w("cleanup", strconv.FormatBool(e.Cleanup))
	w("link_io_runtime", strconv.FormatBool(e.LinkIORuntime))
	return hex.EncodeToString(h.Sum(nil))
}
