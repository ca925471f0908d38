package api

const (
	// FileField is the multipart field carrying the PDF
	FileField = "file"

	// LevelField is the multipart field carrying the compression level
	LevelField = "compression"

	// PDFMimeType is the only declared content type accepted for uploads
	PDFMimeType = "application/pdf"

	// DownloadPrefix is prepended to the original filename of the returned file
	DownloadPrefix = "compressed_"

	// multipartOverhead is allowed on top of MaxFileSize for boundaries and the level field
	multipartOverhead = 1 << 20

	msgInvalidPDF        = "Please upload a valid PDF file."
	msgCompressionFailed = "Compression failed: "
	msgSaveFailed        = "Failed to save uploaded file"
)
