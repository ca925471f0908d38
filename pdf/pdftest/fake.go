// Package pdftest provides stand-ins for the Ghostscript binary so the
// compression path can be exercised without Ghostscript installed.
package pdftest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// Fake is a generated shell script installed in a temp dir.
// ArgsFile receives the arguments of the most recent run, one per line.
type Fake struct {
	Path     string
	ArgsFile string
}

// Args returns the arguments recorded by the last run.
func (f *Fake) Args(t testing.TB) []string {
	t.Helper()
	b, err := os.ReadFile(f.ArgsFile)
	if err != nil {
		t.Fatalf("read fake ghostscript args: %v", err)
	}
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

// NewCopying returns a fake that copies its input file to -sOutputFile and exits 0.
func NewCopying(t testing.TB) *Fake {
	return newFake(t, `cp "$in" "$out"`)
}

// NewFailing returns a fake that prints an error and exits with code.
func NewFailing(t testing.TB, code int) *Fake {
	return newFake(t, fmt.Sprintf(`echo "Error: /syntaxerror in pdf" >&2
exit %d`, code))
}

// NewSlow returns a fake that sleeps for d before copying its input.
func NewSlow(t testing.TB, d time.Duration) *Fake {
	return newFake(t, fmt.Sprintf(`sleep %.3f
cp "$in" "$out"`, d.Seconds()))
}

// MissingBinary returns a path that does not exist.
func MissingBinary(t testing.TB) string {
	return filepath.Join(t.TempDir(), "no-such-gs")
}

func newFake(t testing.TB, body string) *Fake {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ghostscript needs a POSIX shell")
	}

	dir := t.TempDir()
	f := &Fake{
		Path:     filepath.Join(dir, "gs"),
		ArgsFile: filepath.Join(dir, "args.txt"),
	}

	script := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "10.02.1"
  exit 0
fi
printf '%%s\n' "$@" > %q
out=""
in=""
for a in "$@"; do
  case "$a" in
    -sOutputFile=*) out="${a#-sOutputFile=}" ;;
  esac
  in="$a"
done
%s
`, f.ArgsFile, body)

	if err := os.WriteFile(f.Path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ghostscript: %v", err)
	}
	return f
}
