package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/catobuild/cmd/catobuild/commands"
	"git.home.luguber.info/inful/catobuild/internal/config"
	ferrors "git.home.luguber.info/inful/catobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/catobuild/internal/version"
)

// exitUsage is returned for command lines that cannot be parsed.
const exitUsage = 2

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli := &commands.CLI{}
	parser, err := kong.New(cli,
		kong.Name("catobuild"),
		kong.Description("Compile a C program with the CATO transformation pass and link it against the CATO runtime."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catobuild: %v\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			_ = parseErr.Context.PrintUsage(true)
		}
		fmt.Fprintf(os.Stderr, "catobuild: error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, loaded, err := config.LoadEnvironment(".")
	if err != nil {
		return handle(cli.Verbose, err)
	}
	for _, f := range loaded {
		slog.Debug("Loaded environment file", "path", f)
	}

	global := &commands.Global{Ctx: ctx, Env: env, Stdout: os.Stdout, Stderr: os.Stderr}
	if err := kctx.Run(global, cli); err != nil {
		return handle(cli.Verbose, err)
	}
	return 0
}

func handle(verbose bool, err error) int {
	code := 1
	adapter := ferrors.NewCLIErrorAdapter(verbose, slog.Default()).WithExit(func(c int) { code = c })
	adapter.HandleError(err)
	return code
}
