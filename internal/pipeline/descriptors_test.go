package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/catobuild/internal/config"
	"git.home.luguber.info/inful/catobuild/internal/toolchain"
)

func testConfig(t *testing.T) config.Effective {
	t.Helper()
	layout, err := toolchain.Resolve("/opt/cato")
	require.NoError(t, err)
	paths, err := config.NewArtifactPaths("prog.c", "translated")
	require.NoError(t, err)
	return config.Effective{
		CompileFlags: append(config.DefaultCompileFlags(), "-DN=4"),
		LinkFlags:    []string{"-lm"},
		Toolchain:    layout,
		Tools:        config.DefaultTools(),
		Paths:        paths,
		Shape:        config.ShapeSplit,
		Assemble:     config.AssembleObject,
	}
}

func argvs(stages []Stage) [][]string {
	out := make([][]string, len(stages))
	for i, s := range stages {
		out[i] = s.Command.Argv()
	}
	return out
}

func TestStagesSplit(t *testing.T) {
	cfg := testConfig(t)
	stages := Stages(cfg)

	names := make([]StageName, len(stages))
	for i, s := range stages {
		names[i] = s.Name
		require.Equal(t, PolicyFatal, s.Policy)
		require.Equal(t, KindExec, s.Kind)
		require.NotEmpty(t, s.Phase)
	}
	require.Equal(t, []StageName{StageEmitIR, StageTransformIR, StageAssemble, StageLink}, names)

	pass := "/opt/cato/src/build/cato/libCatoPass.so"
	rt := "/opt/cato/src/build/cato/rtlib"
	require.Equal(t, [][]string{
		{"mpicc", "-cc=clang", "-O2", "-g0", "-fopenmp", "-Wno-unknown-pragmas", "-DN=4", "-S", "-emit-llvm", "-o", "translated.ll", "prog.c"},
		{"opt", "-load-pass-plugin", pass, "-passes=Cato", "-S", "translated.ll", "-o", "translated_modified.ll"},
		{"mpicc", "-cc=clang", "-O2", "-g0", "-fopenmp", "-Wno-unknown-pragmas", "-DN=4", "-c", "translated_modified.ll", "-o", "translated.o"},
		{"mpicc", "-cc=clang", "-O2", "-g0", "-fopenmp", "-Wno-unknown-pragmas", "-DN=4", "-o", "translated", "translated.o", rt + "/libCatoRuntime.so", "-lm", "-Wl,-rpath," + rt},
	}, argvs(stages))
}

func TestStagesTransformFlags(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging = true
	cfg.Debug = true
	cfg.DebugPassManager = true

	transform := Stages(cfg)[1]
	require.Equal(t, StageTransformIR, transform.Name)
	require.Equal(t, []string{
		"opt", "--debug-pass-manager", "--debug",
		"-load-pass-plugin", cfg.Toolchain.PassPlugin, "-passes=Cato", "--cato-logging",
		"-S", "translated.ll", "-o", "translated_modified.ll",
	}, transform.Command.Argv())
}

func TestStagesBitcodeAssemble(t *testing.T) {
	cfg := testConfig(t)
	cfg.Assemble = config.AssembleBitcode
	cfg.Cleanup = true
	stages := Stages(cfg)

	require.Equal(t, []string{"llvm-as", "translated_modified.ll", "-o", "translated.bc"}, stages[2].Command.Argv())
	require.Contains(t, stages[3].Command.Args, "translated.bc")
	require.NotContains(t, stages[3].Command.Args, "translated.o")
	require.Equal(t, []string{"translated.bc"}, stages[4].Remove)
}

func TestStagesFused(t *testing.T) {
	cfg := testConfig(t)
	cfg.Shape = config.ShapeFused
	cfg.Logging = true
	cfg.DebugPassManager = true
	cfg.Debug = true
	stages := Stages(cfg)

	require.Len(t, stages, 2)
	require.Equal(t, StageCompile, stages[0].Name)
	require.Equal(t, []string{
		"mpicc", "-cc=clang", "-O2", "-g0", "-fopenmp", "-Wno-unknown-pragmas", "-DN=4",
		"-Xclang", "-load-pass-plugin", "-Xclang", cfg.Toolchain.PassPlugin,
		"-mllvm", "--cato-logging",
		"-Xclang", "-fdebug-pass-manager",
		"-mllvm", "-debug",
		"-c", "prog.c", "-o", "translated.o",
	}, stages[0].Command.Argv())
	require.Equal(t, StageLink, stages[1].Name)
}

func TestStagesRuntimeRpathExactlyOnce(t *testing.T) {
	for _, shape := range []config.Shape{config.ShapeSplit, config.ShapeFused} {
		cfg := testConfig(t)
		cfg.Shape = shape
		cfg.LinkFlags = append(cfg.LinkFlags, "-Wl,--as-needed")

		link := Stages(cfg)[len(Stages(cfg))-1]
		require.Equal(t, StageLink, link.Name)
		want := "-Wl,-rpath," + cfg.Toolchain.RuntimeDir
		count := 0
		for _, a := range link.Command.Args {
			if a == want {
				count++
			}
		}
		require.Equal(t, 1, count, "shape %s", shape)
		require.Contains(t, link.Command.Args, cfg.Toolchain.RuntimeLib)
	}
}

func TestStagesIORuntime(t *testing.T) {
	cfg := testConfig(t)
	cfg.LinkIORuntime = true
	link := Stages(cfg)[3]

	args := strings.Join(link.Command.Args, " ")
	require.Contains(t, args, cfg.Toolchain.RuntimeLib+" "+cfg.Toolchain.IORuntimeLib+" -lm")
	require.True(t, strings.HasSuffix(args, "-Wl,-rpath,"+cfg.Toolchain.RuntimeDir+" -Wl,-rpath,"+cfg.Toolchain.IORuntimeDir))
}

func TestStagesIgnoreFeatureToggles(t *testing.T) {
	cfg := testConfig(t)
	plain := argvs(Stages(cfg))

	cfg.OpenMP = true
	cfg.NetCDF = true
	cfg.DisableOpenMP = true
	require.Equal(t, plain, argvs(Stages(cfg)))
}

func TestStagesCleanup(t *testing.T) {
	cfg := testConfig(t)
	require.Len(t, Stages(cfg), 4)

	cfg.Cleanup = true
	stages := Stages(cfg)
	require.Len(t, stages, 5)
	cleanup := stages[4]
	require.Equal(t, StageCleanup, cleanup.Name)
	require.Equal(t, PolicyWarn, cleanup.Policy)
	require.Equal(t, KindCleanup, cleanup.Kind)
	require.Equal(t, []string{"translated.o"}, cleanup.Remove)
	require.Equal(t, "rm -f translated.o", cleanup.Command.String())
}
