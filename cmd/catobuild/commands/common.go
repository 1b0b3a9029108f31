package commands

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/catobuild/internal/config"
)

// Global carries process-wide state into commands.
type Global struct {
	Ctx    context.Context
	Env    config.Environment
	Stdout io.Writer
	Stderr io.Writer
}

func (g *Global) context() context.Context {
	if g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

func (g *Global) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) stderr() io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Project file (YAML). Defaults to ./catobuild.yaml when present." type:"path"`
	Verbose   bool             `help:"Print every toolchain command before running it; implies debug logging"`
	LogLevel  string           `name:"log-level" help:"Log level (debug|info|warn|error)" env:"CATOBUILD_LOG_LEVEL" default:"info"`
	LogFormat string           `name:"log-format" help:"Log format (text|json)" env:"CATOBUILD_LOG_FORMAT" enum:"text,json" default:"text"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build      BuildCmd   `cmd:"" default:"withargs" help:"Compile a C source file into an instrumented executable (default command)"`
	Watch      WatchCmd   `cmd:"" help:"Rebuild whenever the input file or its local headers change"`
	VersionCmd VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	setupLogging(os.Stderr, c.LogLevel, c.LogFormat, c.Verbose)
	return nil
}

// loadProjectFile reads the explicitly named project file, or the default
// one when it exists in the working directory. No file yields nil.
func loadProjectFile(path string, env config.Environment) (*config.File, string, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultFileName); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, "", nil
			}
			return nil, "", err
		}
		path = config.DefaultFileName
	}
	f, err := config.LoadFile(path, env)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}
