package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pdf_compress/api"
	"pdf_compress/config"
	"pdf_compress/logger"
	"pdf_compress/pdf"
	"pdf_compress/storage"
)

const (
	// ServerReadHeaderTimeout is the HTTP server read header timeout
	ServerReadHeaderTimeout = 15 * time.Second

	// ServerReadTimeout bounds reading a whole upload
	ServerReadTimeout = 2 * time.Minute

	// ServerIdleTimeout is the HTTP server idle timeout
	ServerIdleTimeout = 60 * time.Second

	// responseSlack is added to the job timeout for streaming the result back
	responseSlack = time.Minute

	// GracefulShutdownTimeout is the timeout for graceful shutdown
	GracefulShutdownTimeout = 10 * time.Second
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logger.New(level, os.Stdout)
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

// Bootstrap performs the one-time setup that must succeed before any request
// is accepted: the working directories are created and the processor probed.
// A missing processor is only a warning; requests then fail with 500.
func Bootstrap(ctx context.Context, cfg *config.Config, log *logger.Logger) (*api.Deps, error) {
	layout, err := storage.New(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := layout.Ensure(); err != nil {
		return nil, fmt.Errorf("failed to prepare working directories: %w", err)
	}

	compressor := pdf.NewCompressor(pdf.Options{
		Binary:        cfg.GhostscriptBinary,
		Timeout:       cfg.JobTimeout,
		MaxConcurrent: cfg.MaxConcurrentJobs,
		Logger:        log,
	})

	if version, err := compressor.CheckAvailable(ctx); err != nil {
		log.Warn("ghostscript not available, compression requests will fail", "binary", cfg.GhostscriptBinary, "error", err)
	} else {
		log.Info("ghostscript is available", "binary", cfg.GhostscriptBinary, "version", version)
	}

	return &api.Deps{
		Config:    cfg,
		Layout:    layout,
		Processor: compressor,
		Logger:    log,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	deps, err := Bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}

	stopSweeper := deps.Layout.StartSweeper(cfg.SweepTTL, cfg.SweepInterval, log)
	defer stopSweeper()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(deps)

	var writeTimeout time.Duration
	if cfg.JobTimeout > 0 {
		writeTimeout = cfg.JobTimeout + responseSlack
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: ServerReadHeaderTimeout,
		ReadTimeout:       ServerReadTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       ServerIdleTimeout,
		ErrorLog:          log.StdLogger(logger.WARN),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			"addr", srv.Addr,
			"upload_dir", cfg.UploadDir,
			"output_dir", cfg.OutputDir,
			"max_file_size", cfg.MaxFileSize,
			"max_concurrent_jobs", cfg.MaxConcurrentJobs)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited gracefully")
	return nil
}
