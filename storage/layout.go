package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// DirPermissions for the upload and output directories
	DirPermissions = 0o755

	// fallbackName replaces an original filename that sanitizes to nothing
	fallbackName = "document.pdf"
)

// ErrSameDirectory is returned when inputs and outputs would share a directory.
var ErrSameDirectory = errors.New("upload and output directories must differ")

// Layout owns the two working directories: staged uploads and produced outputs.
// Both are shared by all requests; every request works on its own generated name.
type Layout struct {
	uploadDir string
	outputDir string
}

// StagedFile is one request's pair of paths. Name is unique per request and
// is used unchanged in both directories.
type StagedFile struct {
	Name         string
	OriginalName string
	InputPath    string
	OutputPath   string
}

func New(uploadDir, outputDir string) (*Layout, error) {
	if filepath.Clean(uploadDir) == filepath.Clean(outputDir) {
		return nil, fmt.Errorf("%w: %s", ErrSameDirectory, uploadDir)
	}
	return &Layout{uploadDir: uploadDir, outputDir: outputDir}, nil
}

func (l *Layout) UploadDir() string { return l.uploadDir }
func (l *Layout) OutputDir() string { return l.outputDir }

// Ensure creates both directories if they are missing. Safe to call repeatedly.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.uploadDir, l.outputDir} {
		if err := os.MkdirAll(dir, DirPermissions); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// NewStagedFile reserves a unique name of the form <uuid>_<original> without touching the disk.
func (l *Layout) NewStagedFile(original string) *StagedFile {
	name := uuid.NewString() + "_" + SanitizeFilename(original)
	return &StagedFile{
		Name:         name,
		OriginalName: original,
		InputPath:    filepath.Join(l.uploadDir, name),
		OutputPath:   filepath.Join(l.outputDir, name),
	}
}

// Stage copies r into a freshly named input file. A partially written file is removed on error.
func (l *Layout) Stage(r io.Reader, original string) (*StagedFile, error) {
	sf := l.NewStagedFile(original)

	out, err := os.OpenFile(sf.InputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(sf.InputPath)
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(sf.InputPath)
		return nil, fmt.Errorf("close staged file: %w", err)
	}

	return sf, nil
}

// RemoveInput deletes the staged upload. A missing file is not an error.
func (s *StagedFile) RemoveInput() error {
	return removeIfExists(s.InputPath)
}

// RemoveOutput deletes the produced artifact. A missing file is not an error.
func (s *StagedFile) RemoveOutput() error {
	return removeIfExists(s.OutputPath)
}

// Remove deletes both files, joining any failures.
func (s *StagedFile) Remove() error {
	return errors.Join(s.RemoveInput(), s.RemoveOutput())
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SanitizeFilename strips directory components and traversal sequences from an
// untrusted filename.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.TrimSpace(filepath.Base(filename))

	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return fallbackName
	}
	return filename
}
