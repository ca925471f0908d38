package pdf

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// runCommand starts name with args and waits for it. ctx cancellation kills the
// process. Launch failures come back as *LaunchError, non-zero exits as *ExitError,
// and an expired timeout as ErrTimeout.
func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("not started: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output := &tailBuffer{max: maxCapturedOutput}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = killGracePeriod

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Binary: name, Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		return output.Bytes(), nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return output.Bytes(), fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return output.Bytes(), fmt.Errorf("ghostscript cancelled: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output.Bytes(), &ExitError{Code: exitErr.ExitCode(), Output: output.String()}
	}
	return output.Bytes(), fmt.Errorf("ghostscript wait failed: %w", err)
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf...)
}

func (t *tailBuffer) String() string {
	return string(t.Bytes())
}
