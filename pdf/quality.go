package pdf

// Compression levels accepted from callers. The level names compression
// strength, not output quality: LevelHigh gives the smallest file and the
// lowest fidelity.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Ghostscript -dPDFSETTINGS presets
const (
	QualityScreen   = "screen"
	QualityEbook    = "ebook"
	QualityPrepress = "prepress"
)

var qualityByLevel = map[string]string{
	LevelHigh:   QualityScreen,
	LevelMedium: QualityEbook,
	LevelLow:    QualityPrepress,
}

// ResolveQuality maps a compression level to its Ghostscript preset.
// ok is false for anything outside Levels(), including the empty string.
func ResolveQuality(level string) (quality string, ok bool) {
	quality, ok = qualityByLevel[level]
	return quality, ok
}

// Levels lists the accepted compression levels from strongest to weakest.
func Levels() []string {
	return []string{LevelHigh, LevelMedium, LevelLow}
}
