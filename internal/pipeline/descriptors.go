package pipeline

import (
	"slices"

	"git.home.luguber.info/inful/catobuild/internal/config"
	"git.home.luguber.info/inful/catobuild/internal/runner"
)

// Human-readable phases used in diagnostics.
const (
	PhaseEmitIR      = "IR emission"
	PhaseTransformIR = "IR transformation"
	PhaseAssemble    = "assembly"
	PhaseCompile     = "instrumented compilation"
	PhaseLink        = "linking"
	PhaseCleanup     = "cleanup"
)

// Stages builds the canonical stage sequence for cfg. The result depends on
// cfg alone, so a dry run and a real run produce the same commands.
// Feature toggles (OpenMP, netCDF) do not influence it.
func Stages(cfg config.Effective) []Stage {
	var stages []Stage
	var linkInput string

	switch cfg.Shape {
	case config.ShapeFused:
		stages = append(stages, compileStage(cfg))
		linkInput = cfg.Paths.Object
	default:
		stages = append(stages, emitIRStage(cfg), transformIRStage(cfg), assembleStage(cfg))
		linkInput = cfg.Paths.Object
		if cfg.Assemble == config.AssembleBitcode {
			linkInput = cfg.Paths.Bitcode
		}
	}

	stages = append(stages, linkStage(cfg, linkInput))
	if cfg.Cleanup {
		stages = append(stages, cleanupStage(linkInput))
	}
	return stages
}

// frontEnd starts a command line for the compiler wrapper with all compile
// flags applied.
func frontEnd(cfg config.Effective, extra ...string) runner.Command {
	args := make([]string, 0, len(cfg.Tools.WrapperArgs)+len(cfg.CompileFlags)+len(extra))
	args = append(args, cfg.Tools.WrapperArgs...)
	args = append(args, cfg.CompileFlags...)
	args = append(args, extra...)
	return runner.NewCommand(cfg.Tools.Wrapper, args...)
}

func emitIRStage(cfg config.Effective) Stage {
	return Stage{
		Name:    StageEmitIR,
		Phase:   PhaseEmitIR,
		Command: frontEnd(cfg, "-S", "-emit-llvm", "-o", cfg.Paths.IR, cfg.Paths.Input),
		Policy:  PolicyFatal,
		Kind:    KindExec,
	}
}

func transformIRStage(cfg config.Effective) Stage {
	var args []string
	if cfg.DebugPassManager {
		args = append(args, "--debug-pass-manager")
	}
	if cfg.Debug {
		args = append(args, "--debug")
	}
	args = append(args,
		"-load-pass-plugin", cfg.Toolchain.PassPlugin,
		"-passes="+cfg.Tools.PassName,
	)
	if cfg.Logging {
		args = append(args, "--cato-logging")
	}
	args = append(args, "-S", cfg.Paths.IR, "-o", cfg.Paths.TransformedIR)
	return Stage{
		Name:    StageTransformIR,
		Phase:   PhaseTransformIR,
		Command: runner.NewCommand(cfg.Tools.Optimizer, args...),
		Policy:  PolicyFatal,
		Kind:    KindExec,
	}
}

func assembleStage(cfg config.Effective) Stage {
	cmd := frontEnd(cfg, "-c", cfg.Paths.TransformedIR, "-o", cfg.Paths.Object)
	if cfg.Assemble == config.AssembleBitcode {
		cmd = runner.NewCommand(cfg.Tools.Assembler, cfg.Paths.TransformedIR, "-o", cfg.Paths.Bitcode)
	}
	return Stage{
		Name:    StageAssemble,
		Phase:   PhaseAssemble,
		Command: cmd,
		Policy:  PolicyFatal,
		Kind:    KindExec,
	}
}

func compileStage(cfg config.Effective) Stage {
	extra := []string{"-Xclang", "-load-pass-plugin", "-Xclang", cfg.Toolchain.PassPlugin}
	if cfg.Logging {
		extra = append(extra, "-mllvm", "--cato-logging")
	}
	if cfg.DebugPassManager {
		extra = append(extra, "-Xclang", "-fdebug-pass-manager")
	}
	if cfg.Debug {
		extra = append(extra, "-mllvm", "-debug")
	}
	extra = append(extra, "-c", cfg.Paths.Input, "-o", cfg.Paths.Object)
	return Stage{
		Name:    StageCompile,
		Phase:   PhaseCompile,
		Command: frontEnd(cfg, extra...),
		Policy:  PolicyFatal,
		Kind:    KindExec,
	}
}

func linkStage(cfg config.Effective, input string) Stage {
	extra := []string{"-o", cfg.Paths.Executable, input, cfg.Toolchain.RuntimeLib}
	if cfg.LinkIORuntime {
		extra = append(extra, cfg.Toolchain.IORuntimeLib)
	}
	extra = append(extra, cfg.LinkFlags...)
	extra = append(extra, "-Wl,-rpath,"+cfg.Toolchain.RuntimeDir)
	if cfg.LinkIORuntime {
		extra = append(extra, "-Wl,-rpath,"+cfg.Toolchain.IORuntimeDir)
	}
	return Stage{
		Name:    StageLink,
		Phase:   PhaseLink,
		Command: frontEnd(cfg, extra...),
		Policy:  PolicyFatal,
		Kind:    KindExec,
	}
}

// cleanupStage removes the lowered artifact once it is linked. The IR files
// are kept for inspection.
func cleanupStage(paths ...string) Stage {
	return Stage{
		Name:    StageCleanup,
		Phase:   PhaseCleanup,
		Command: runner.NewCommand("rm", append([]string{"-f"}, paths...)...),
		Policy:  PolicyWarn,
		Kind:    KindCleanup,
		Remove:  slices.Clone(paths),
	}
}
