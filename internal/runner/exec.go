package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/catobuild/internal/logfields"
)

// Exec runs commands as child processes.
//
// Stdout of the child is read incrementally and every completed line is
// written to Out as soon as it arrives, so long compiler stages give live
// feedback and the child never stalls on a full pipe. Stderr is handed to the
// child directly.
type Exec struct {
	Out io.Writer // streamed stdout lines and echoed commands; defaults to os.Stdout
	Err io.Writer // child stderr; defaults to os.Stderr

	// DryRun prints each command instead of running it and reports success.
	DryRun bool
	// Echo prints each command before running it.
	Echo bool

	// Env, when non-nil, is the complete environment given to children.
	Env []string
}

var (
	_ Runner  = (*Exec)(nil)
	_ Querier = (*Exec)(nil)
)

func (e *Exec) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Exec) errOut() io.Writer {
	if e.Err == nil {
		return os.Stderr
	}
	return e.Err
}

// Run executes cmd, streaming its output, and returns its exit code.
// Once launched, a command runs to completion: ctx is only consulted before
// the process starts.
func (e *Exec) Run(ctx context.Context, cmd Command) (Result, error) {
	if e.DryRun || e.Echo {
		fmt.Fprintln(e.out(), cmd.String())
	}
	if e.DryRun {
		return Result{}, nil
	}
	out := e.out()
	code, err := e.execute(ctx, cmd, func(line string) {
		fmt.Fprintln(out, line)
	})
	return Result{ExitCode: code}, err
}

// Capture executes cmd and returns everything it printed, with line
// separators trimmed from the end. Queries run even in dry-run so the
// printed plan matches the real one; with DryRun or Echo the query command
// is announced on Err, keeping Out limited to stage commands.
func (e *Exec) Capture(ctx context.Context, cmd Command) (Result, error) {
	if e.DryRun || e.Echo {
		fmt.Fprintf(e.errOut(), "catobuild: query: %s\n", cmd.String())
	}
	var lines []string
	code, err := e.execute(ctx, cmd, func(line string) {
		lines = append(lines, line)
	})
	output := strings.TrimRight(strings.Join(lines, "\n"), "\r\n")
	return Result{ExitCode: code, Output: output}, err
}

func (e *Exec) execute(ctx context.Context, cmd Command, sink func(string)) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	// exec.Command rather than CommandContext: cancellation never interrupts
	// a running stage.
	c := exec.Command(cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = e.Env
	c.Stderr = e.errOut()

	stdout, err := c.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe for %s: %w", cmd.Program, err)
	}

	slog.Debug("Launching tool", logfields.Program(cmd.Program), logfields.Command(cmd.String()))
	if err := c.Start(); err != nil {
		return -1, &LaunchError{Program: cmd.Program, Err: err}
	}

	readErr := readLines(stdout, sink)
	waitErr := c.Wait()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code := exitErr.ExitCode()
			if code < 0 {
				// terminated by a signal
				code = 1
			}
			return code, nil
		}
		return -1, fmt.Errorf("wait for %s: %w", cmd.Program, waitErr)
	}
	if readErr != nil {
		return -1, fmt.Errorf("read output of %s: %w", cmd.Program, readErr)
	}
	return 0, nil
}

// readLines delivers each line of r to sink without its terminator. A final
// line without a newline is delivered at EOF.
func readLines(r io.Reader, sink func(string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			sink(strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
