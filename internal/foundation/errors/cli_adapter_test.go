package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return fmt.Sprintf("tool exited with %d", e.code) }
func (e *exitCodeError) ExitCode() int { return e.code }

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation error", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "config error", err: ConfigError("CATO_ROOT is not set").Build(), expected: 7},
		{name: "launch error", err: LaunchError("mpicc not found").Build(), expected: 127},
		{name: "internal error", err: InternalError("bug").Build(), expected: 10},
		{name: "stage exit code", err: fmt.Errorf("link: %w", &exitCodeError{code: 3}), expected: 3},
		{name: "zero exit code falls back", err: &exitCodeError{code: 0}, expected: 1},
		{name: "unclassified error", err: errors.New("unknown error"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.ExitCodeFor(tt.err)
			if got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	err := WrapError(errors.New("exit status 1"), CategoryConfig, "configuration query failed").
		WithContext("command", "nc-config --cflags").
		Build()

	quiet := NewCLIErrorAdapter(false, slog.Default()).FormatError(err)
	if quiet != "catobuild: configuration query failed: exit status 1" {
		t.Errorf("unexpected quiet format: %q", quiet)
	}

	verbose := NewCLIErrorAdapter(true, slog.Default()).FormatError(err)
	if !strings.Contains(verbose, "command: nc-config --cflags") {
		t.Errorf("expected context in verbose format, got %q", verbose)
	}

	if got := NewCLIErrorAdapter(false, nil).FormatError(errors.New("boom")); got != "catobuild: boom" {
		t.Errorf("unexpected unclassified format: %q", got)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out, logs bytes.Buffer
	code := -1
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil))).
		WithOutput(&out).
		WithExit(func(c int) { code = c })

	adapter.HandleError(ConfigError("CATO_ROOT is not set").Build())

	if code != 7 {
		t.Errorf("expected exit code 7, got %d", code)
	}
	if !strings.Contains(out.String(), "CATO_ROOT is not set") {
		t.Errorf("expected message on output, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "category=config") {
		t.Errorf("expected category in log, got %q", logs.String())
	}

	code = -1
	adapter.HandleError(nil)
	if code != -1 {
		t.Error("expected nil error not to exit")
	}
}
