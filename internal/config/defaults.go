package config

import "slices"

// Environment variables consulted during resolution.
const (
	EnvCatoRoot = "CATO_ROOT"
	EnvCXXFlags = "CXXFLAGS"
	EnvCFlags   = "CFLAGS"
	EnvLDFlags  = "LDFLAGS"
	EnvLDLibs   = "LDLIBS"
)

const (
	DefaultOutput    = "translated"
	DefaultPassName  = "Cato"
	DefaultWrapper   = "mpicc"
	DefaultOptimizer = "opt"
	DefaultAssembler = "llvm-as"
)

var (
	defaultWrapperArgs  = []string{"-cc=clang"}
	defaultCompileFlags = []string{"-O2", "-g0", "-fopenmp", "-Wno-unknown-pragmas"}
)

// DefaultCompileFlags returns the compile flags every build starts from
// unless a project file replaces them.
func DefaultCompileFlags() []string { return slices.Clone(defaultCompileFlags) }

// DefaultTools returns the stock tool names.
func DefaultTools() Tools {
	return Tools{
		Wrapper:     DefaultWrapper,
		WrapperArgs: slices.Clone(defaultWrapperArgs),
		Optimizer:   DefaultOptimizer,
		Assembler:   DefaultAssembler,
		PassName:    DefaultPassName,
	}
}
