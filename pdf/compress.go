package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"pdf_compress/logger"
)

// Job is one compression run: a staged input, its output path and the resolved preset.
type Job struct {
	InputPath  string
	OutputPath string
	Quality    string
}

// Result is the single value delivered for a started Job.
// Err is nil exactly when the processor exited with code 0.
type Result struct {
	OutputPath string
	Err        error
}

// Options configure a Compressor. Zero values mean: "gs" from PATH,
// no timeout, no concurrency limit, default logger.
type Options struct {
	Binary        string
	Timeout       time.Duration
	MaxConcurrent int
	Logger        *logger.Logger
}

// Compressor runs Ghostscript to rewrite PDFs at a chosen preset.
// It is safe for concurrent use; every job gets its own subprocess.
type Compressor struct {
	binary  string
	timeout time.Duration
	slots   *semaphore.Weighted
	log     *logger.Logger
}

func NewCompressor(opts Options) *Compressor {
	c := &Compressor{
		binary:  opts.Binary,
		timeout: opts.Timeout,
		log:     opts.Logger,
	}
	if c.binary == "" {
		c.binary = DefaultBinary
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	if opts.MaxConcurrent > 0 {
		c.slots = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return c
}

func (c *Compressor) Binary() string { return c.binary }

// BuildArgs returns the Ghostscript argument list for job.
func BuildArgs(job Job) []string {
	return []string{
		"-sDEVICE=" + OutputDevice,
		"-dCompatibilityLevel=" + CompatibilityLevel,
		"-dPDFSETTINGS=/" + job.Quality,
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=" + job.OutputPath,
		job.InputPath,
	}
}

// Start launches job in the background and returns a channel that receives
// exactly one Result and is then closed. Cancelling ctx kills the subprocess.
// There are no retries.
func (c *Compressor) Start(ctx context.Context, job Job) <-chan Result {
	done := make(chan Result, 1)

	go func() {
		defer close(done)
		out, err := c.run(ctx, job)
		done <- Result{OutputPath: out, Err: err}
	}()

	return done
}

// Compress runs job and blocks until the subprocess has finished.
func (c *Compressor) Compress(ctx context.Context, job Job) (string, error) {
	res := <-c.Start(ctx, job)
	return res.OutputPath, res.Err
}

func (c *Compressor) run(ctx context.Context, job Job) (string, error) {
	if job.Quality == "" {
		return "", ErrNoQuality
	}
	if job.InputPath == job.OutputPath {
		return "", fmt.Errorf("input and output path are the same: %s", job.InputPath)
	}

	if c.slots != nil {
		if err := c.slots.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("waiting for a free ghostscript slot: %w", err)
		}
		defer c.slots.Release(1)
	}

	log := c.log.WithFields("input", job.InputPath, "quality", job.Quality)
	log.Debug("starting ghostscript", "args", strings.Join(BuildArgs(job), " "))

	started := time.Now()
	_, err := runCommand(ctx, c.timeout, c.binary, BuildArgs(job)...)
	elapsed := time.Since(started)

	if err != nil {
		kv := []interface{}{"error", err, "duration", elapsed}
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Output != "" {
			kv = append(kv, "output", strings.TrimSpace(exitErr.Output))
		}
		log.Warn("ghostscript failed", kv...)
		return "", err
	}

	log.Info("ghostscript finished", "output", job.OutputPath, "duration", elapsed)
	return job.OutputPath, nil
}

// CheckAvailable runs "<binary> --version" and returns the reported version.
func (c *Compressor) CheckAvailable(ctx context.Context) (string, error) {
	out, err := runCommand(ctx, VersionCheckTimeout, c.binary, "--version")
	if err != nil {
		return "", fmt.Errorf("%s not usable: %w", c.binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}
