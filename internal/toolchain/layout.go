// Package toolchain locates the CATO installation: the transformation pass
// plugin and the runtime libraries the instrumented executable links against.
package toolchain

import (
	"path/filepath"
)

// Relative locations inside a CATO checkout.
const (
	buildDir       = "src/build/cato"
	PassPluginFile = "libCatoPass.so"
	RuntimeDirName = "rtlib"
	RuntimeLibFile = "libCatoRuntime.so"
	IODirName      = "rtlib_io"
	IORuntimeFile  = "libCatoIORuntime.so"
)

// Layout holds absolute paths into a CATO installation.
type Layout struct {
	Root         string
	PassPlugin   string
	RuntimeDir   string
	RuntimeLib   string
	IORuntimeDir string
	IORuntimeLib string
}

// Resolve derives the layout from the installation root. The root is made
// absolute so that generated commands do not depend on the working directory
// of the tools.
func Resolve(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, err
	}
	base := filepath.Join(abs, filepath.FromSlash(buildDir))
	rtDir := filepath.Join(base, RuntimeDirName)
	ioDir := filepath.Join(base, IODirName)
	return Layout{
		Root:         abs,
		PassPlugin:   filepath.Join(base, PassPluginFile),
		RuntimeDir:   rtDir,
		RuntimeLib:   filepath.Join(rtDir, RuntimeLibFile),
		IORuntimeDir: ioDir,
		IORuntimeLib: filepath.Join(ioDir, IORuntimeFile),
	}, nil
}
