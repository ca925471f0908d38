package pdf

import "time"

const (
	// DefaultBinary is the Ghostscript executable looked up in PATH
	DefaultBinary = "gs"

	// CompatibilityLevel is the PDF version Ghostscript writes
	CompatibilityLevel = "1.4"

	// OutputDevice is the Ghostscript device producing PDF output
	OutputDevice = "pdfwrite"

	// VersionCheckTimeout bounds the startup availability probe
	VersionCheckTimeout = 5 * time.Second

	// maxCapturedOutput is how much of the processor's trailing output is kept for diagnostics
	maxCapturedOutput = 4096

	// killGracePeriod is how long Wait keeps reading output after the process is killed
	killGracePeriod = 2 * time.Second
)
