package pdf

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means the processor ran longer than the configured job timeout
	ErrTimeout = errors.New("ghostscript timed out")

	// ErrNoQuality guards against launching the processor without a preset
	ErrNoQuality = errors.New("no quality setting resolved")
)

// ExitError reports a processor run that terminated with a non-zero exit code.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ghostscript process exited with code %d", e.Code)
}

// LaunchError reports a processor that could not be started at all.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
