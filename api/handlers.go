package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"pdf_compress/pdf"
)

// HandleCompress accepts one PDF plus a compression level, runs it through the
// processor and streams the result back as compressed_<original name>.
// Nothing is written back until the processor has finished.
func HandleCompress(c *gin.Context, deps *Deps) {
	cfg := deps.Config
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxFileSize+multipartOverhead)

	header, err := c.FormFile(FileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusBadRequest, tooLargeMessage(cfg.MaxFileSize))
			return
		}
		c.String(http.StatusBadRequest, msgInvalidPDF)
		return
	}

	if err := validateUpload(header, cfg.MaxFileSize); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	level := c.PostForm(LevelField)
	quality, ok := pdf.ResolveQuality(level)
	if !ok {
		c.String(http.StatusBadRequest, fmt.Sprintf("Unsupported compression level %q (expected one of %s)",
			level, strings.Join(pdf.Levels(), ", ")))
		return
	}

	file, err := header.Open()
	if err != nil {
		c.String(http.StatusBadRequest, msgInvalidPDF)
		return
	}
	defer file.Close()

	if cfg.VerifySignature {
		if err := verifySignature(file); err != nil {
			c.String(http.StatusBadRequest, msgInvalidPDF)
			return
		}
	}

	staged, err := deps.Layout.Stage(file, header.Filename)
	if err != nil {
		deps.Logger.Error("failed to stage upload", "file", header.Filename, "error", err)
		c.String(http.StatusInternalServerError, msgSaveFailed)
		return
	}
	log := deps.Logger.WithFields("job", staged.Name, "level", level)

	keep := cfg.KeepFiles
	defer func() {
		if keep {
			return
		}
		if err := staged.RemoveInput(); err != nil {
			log.Warn("failed to remove staged input", "error", err)
		}
	}()

	res := <-deps.Processor.Start(c.Request.Context(), pdf.Job{
		InputPath:  staged.InputPath,
		OutputPath: staged.OutputPath,
		Quality:    quality,
	})
	if res.Err != nil {
		// A failed run may leave a partial artifact behind.
		if err := staged.RemoveOutput(); err != nil {
			log.Warn("failed to remove partial output", "error", err)
		}
		log.Error("compression failed", "error", res.Err)
		c.String(http.StatusInternalServerError, msgCompressionFailed+res.Err.Error())
		return
	}

	defer func() {
		if keep {
			return
		}
		if err := staged.RemoveOutput(); err != nil {
			log.Warn("failed to remove output", "error", err)
		}
	}()

	c.Header("Content-Type", PDFMimeType)
	c.FileAttachment(res.OutputPath, DownloadName(header.Filename))
}

// DownloadName is the filename suggested to the client for a compressed upload.
func DownloadName(original string) string {
	return DownloadPrefix + original
}

// validateUpload checks the declared content type and size of the file part.
func validateUpload(header *multipart.FileHeader, maxSize int64) error {
	if header.Header.Get("Content-Type") != PDFMimeType {
		return errors.New(msgInvalidPDF)
	}
	if header.Size > maxSize {
		return errors.New(tooLargeMessage(maxSize))
	}
	return nil
}

// verifySignature sniffs the file content and rewinds it afterwards.
func verifySignature(file multipart.File) error {
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return fmt.Errorf("failed to read file header: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to reset file position: %w", err)
	}
	if !mtype.Is(PDFMimeType) {
		return fmt.Errorf("content is %s, not a PDF", mtype.String())
	}
	return nil
}

func tooLargeMessage(maxSize int64) string {
	return fmt.Sprintf("File too large (max %d MB)", maxSize/(1024*1024))
}
