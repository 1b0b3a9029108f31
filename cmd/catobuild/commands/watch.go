package commands

import (
	"context"
	"time"

	"git.home.luguber.info/inful/catobuild/internal/config"
	"git.home.luguber.info/inful/catobuild/internal/runner"
	"git.home.luguber.info/inful/catobuild/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	BuildFlags `embed:""`

	Debounce time.Duration `help:"Quiet period after a change before rebuilding" default:"300ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx := g.context()

	// Configuration problems would fail every rebuild; report them once.
	file, projectPath, err := loadProjectFile(root.Config, g.Env)
	if err != nil {
		return err
	}
	probe := &runner.Exec{Err: g.stderr(), Env: g.Env.Pairs()}
	if _, _, err := config.Resolve(ctx, w.options(root.Verbose), g.Env, probe, file); err != nil {
		return err
	}

	files := []string{w.Input}
	if projectPath != "" {
		files = append(files, projectPath)
	}
	return watch.Run(ctx, watch.Options{Files: files, Debounce: w.Debounce}, func(ctx context.Context) error {
		_, err := RunBuild(ctx, g, root, w.BuildFlags)
		return err
	})
}
