// Package runner executes external toolchain commands one at a time, streaming
// their standard output line by line to the caller.
package runner

import (
	"context"

	"github.com/kballard/go-shellquote"
)

// Command is a structured process invocation: a program and its ordered
// argument vector. No shell is involved in running it.
type Command struct {
	Program string
	Args    []string
	// Dir is the working directory; empty means the current directory.
	Dir string
}

// NewCommand builds a Command from a program and its arguments.
func NewCommand(program string, args ...string) Command {
	return Command{Program: program, Args: args}
}

// Argv returns program followed by its arguments.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Program)
	return append(argv, c.Args...)
}

// String renders the command as a shell-quoted line, suitable for echoing
// and for copy-pasting into a terminal.
func (c Command) String() string {
	return shellquote.Join(c.Argv()...)
}

// Result is the outcome of one command. ExitCode 0 means success. Output is
// only populated by capture runs.
type Result struct {
	ExitCode int
	Output   string
}

// Success reports whether the command exited with status 0.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Runner executes a single command and reports its exit status. A nonzero
// exit status is returned as data, never as an error; the error return is
// reserved for commands that could not be launched.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Querier runs a command whose output is consumed as data, such as a
// library's flag-reporting helper.
type Querier interface {
	Capture(ctx context.Context, cmd Command) (Result, error)
}
