package storage

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"pdf_compress/logger"
)

// StartSweeper periodically removes files older than ttl from both directories.
// It reclaims whatever a request could not clean up itself (crash, kill, keep_files).
// The returned func stops the sweeper and may be called more than once.
func (l *Layout) StartSweeper(ttl, every time.Duration, log *logger.Logger) func() {
	if ttl <= 0 || every <= 0 {
		return func() {}
	}
	if log == nil {
		log = logger.Default()
	}

	ticker := time.NewTicker(every)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				removed, err := l.SweepOnce(ttl)
				if err != nil {
					log.Warn("sweep failed", "error", err)
				}
				if removed > 0 {
					log.Info("swept stale files", "removed", removed, "ttl", ttl)
				}
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}

// SweepOnce deletes regular files whose modification time is older than ttl
// and returns how many were removed.
func (l *Layout) SweepOnce(ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	removed := 0
	var firstErr error

	for _, dir := range []string{l.uploadDir, l.outputDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := removeIfExists(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
	}

	return removed, firstErr
}
