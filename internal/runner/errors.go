package runner

import (
	"errors"
	"fmt"
)

// ErrLaunch is matched by every LaunchError.
var ErrLaunch = errors.New("catobuild: command could not be launched")

// LaunchError reports that a tool could not be started at all, usually because
// the binary is missing from PATH or is not executable. It indicates a broken
// environment, as opposed to a tool that ran and reported failure.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrLaunch) match any LaunchError.
func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }

// IsLaunchError reports whether err (or anything it wraps) is a LaunchError.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}
