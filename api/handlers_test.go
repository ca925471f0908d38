package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf_compress/config"
	"pdf_compress/logger"
	"pdf_compress/pdf"
	"pdf_compress/pdf/pdftest"
	"pdf_compress/storage"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler http.Handler
	cfg     *config.Config
	layout  *storage.Layout
}

func newTestServer(t *testing.T, binary string, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.UploadDir = filepath.Join(root, "uploads")
	cfg.OutputDir = filepath.Join(root, "compressed")
	cfg.StaticDir = ""
	cfg.GhostscriptBinary = binary
	for _, m := range mutate {
		m(&cfg)
	}
	require.NoError(t, cfg.Validate())

	layout, err := storage.New(cfg.UploadDir, cfg.OutputDir)
	require.NoError(t, err)
	require.NoError(t, layout.Ensure())

	log := logger.New(logger.ERROR, io.Discard)
	router := NewRouter(&Deps{
		Config:    &cfg,
		Layout:    layout,
		Processor: pdf.NewCompressor(pdf.Options{Binary: binary, Logger: log}),
		Logger:    log,
	})

	return &testServer{handler: router, cfg: &cfg, layout: layout}
}

type upload struct {
	filename    string
	contentType string
	content     string
	level       string
	omitFile    bool
}

func newUploadRequest(t *testing.T, u upload) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if !u.omitFile {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FileField, u.filename))
		h.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(u.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField(LevelField, u.level))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) post(t *testing.T, u upload) *httptest.ResponseRecorder {
	t.Helper()
	return s.serve(newUploadRequest(t, u))
}

func (s *testServer) assertDirsEmpty(t *testing.T) {
	t.Helper()
	for _, dir := range []string{s.layout.UploadDir(), s.layout.OutputDir()} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "leftover files in %s", dir)
	}
}

func TestHandleCompress_Success(t *testing.T) {
	fake := pdftest.NewCopying(t)
	srv := newTestServer(t, fake.Path)

	rec := srv.post(t, upload{filename: "sample.pdf", contentType: "application/pdf", content: samplePDF, level: "medium"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, samplePDF, rec.Body.String())
	assert.Equal(t, `attachment; filename="compressed_sample.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, fake.Args(t), "-dPDFSETTINGS=/ebook")

	srv.assertDirsEmpty(t)
}

func TestHandleCompress_EveryLevel(t *testing.T) {
	want := map[string]string{"high": "screen", "medium": "ebook", "low": "prepress"}

	for level, quality := range want {
		t.Run(level, func(t *testing.T) {
			fake := pdftest.NewCopying(t)
			srv := newTestServer(t, fake.Path)

			rec := srv.post(t, upload{filename: "a.pdf", contentType: "application/pdf", content: samplePDF, level: level})

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, fake.Args(t), "-dPDFSETTINGS=/"+quality)
		})
	}
}

func TestHandleCompress_WrongContentType(t *testing.T) {
	fake := pdftest.NewCopying(t)
	srv := newTestServer(t, fake.Path)

	rec := srv.post(t, upload{filename: "notes.txt", contentType: "text/plain", content: "hello", level: "medium"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid PDF file")
	_, err := os.Stat(fake.ArgsFile)
	assert.True(t, os.IsNotExist(err), "processor must not run")
	srv.assertDirsEmpty(t)
}

func TestHandleCompress_MissingFile(t *testing.T) {
	fake := pdftest.NewCopying(t)
	srv := newTestServer(t, fake.Path)

	rec := srv.post(t, upload{omitFile: true, level: "medium"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid PDF file")
}

func TestHandleCompress_NotMultipart(t *testing.T) {
	srv := newTestServer(t, pdftest.NewCopying(t).Path)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("raw"))
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompress_UnknownLevel(t *testing.T) {
	for _, level := range []string{"", "extreme", "HIGH"} {
		t.Run(fmt.Sprintf("level=%q", level), func(t *testing.T) {
			fake := pdftest.NewCopying(t)
			srv := newTestServer(t, fake.Path)

			rec := srv.post(t, upload{filename: "a.pdf", contentType: "application/pdf", content: samplePDF, level: level})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Unsupported compression level")
			_, err := os.Stat(fake.ArgsFile)
			assert.True(t, os.IsNotExist(err), "processor must not run")
			srv.assertDirsEmpty(t)
		})
	}
}

func TestHandleCompress_TooLarge(t *testing.T) {
	fake := pdftest.NewCopying(t)
	srv := newTestServer(t, fake.Path, func(c *config.Config) { c.MaxFileSize = 16 })

	rec := srv.post(t, upload{filename: "big.pdf", contentType: "application/pdf", content: samplePDF, level: "low"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File too large")
}

func TestHandleCompress_SignatureCheck(t *testing.T) {
	fake := pdftest.NewCopying(t)
	srv := newTestServer(t, fake.Path, func(c *config.Config) { c.VerifySignature = true })

	rec := srv.post(t, upload{filename: "fake.pdf", contentType: "application/pdf", content: "just text", level: "high"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid PDF file")

	rec = srv.post(t, upload{filename: "real.pdf", contentType: "application/pdf", content: samplePDF, level: "high"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, samplePDF, rec.Body.String(), "sniffing must not consume the upload")
}

func TestHandleCompress_ProcessorExitCode(t *testing.T) {
	fake := pdftest.NewFailing(t, 3)
	srv := newTestServer(t, fake.Path)

	rec := srv.post(t, upload{filename: "broken.pdf", contentType: "application/pdf", content: samplePDF, level: "medium"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Compression failed")
	assert.Contains(t, rec.Body.String(), "code 3")
	srv.assertDirsEmpty(t)
}

func TestHandleCompress_ProcessorMissing(t *testing.T) {
	srv := newTestServer(t, pdftest.MissingBinary(t))

	rec := srv.post(t, upload{filename: "sample.pdf", contentType: "application/pdf", content: samplePDF, level: "medium"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Compression failed")
	srv.assertDirsEmpty(t)
}

func TestHandleCompress_ServesAfterFailure(t *testing.T) {
	fake := pdftest.NewFailing(t, 1)
	srv := newTestServer(t, fake.Path)

	rec := srv.post(t, upload{filename: "a.pdf", contentType: "application/pdf", content: samplePDF, level: "low"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = srv.post(t, upload{filename: "notes.txt", contentType: "text/plain", content: "x", level: "low"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "server keeps answering")
}

func TestHandleCompress_KeepFiles(t *testing.T) {
	fake := pdftest.NewCopying(t)
	srv := newTestServer(t, fake.Path, func(c *config.Config) { c.KeepFiles = true })

	rec := srv.post(t, upload{filename: "kept.pdf", contentType: "application/pdf", content: samplePDF, level: "medium"})
	require.Equal(t, http.StatusOK, rec.Code)

	inputs, err := os.ReadDir(srv.layout.UploadDir())
	require.NoError(t, err)
	outputs, err := os.ReadDir(srv.layout.OutputDir())
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Len(t, outputs, 1)
	assert.Equal(t, inputs[0].Name(), outputs[0].Name(), "output named after the staged file")
}

func TestHandleCompress_ConcurrentSameFilename(t *testing.T) {
	fake := pdftest.NewSlow(t, 50*time.Millisecond)
	srv := newTestServer(t, fake.Path)

	const n = 8
	reqs := make([]*http.Request, n)
	for i := range reqs {
		content := fmt.Sprintf("%s%% request %d\n", samplePDF, i)
		reqs[i] = newUploadRequest(t, upload{filename: "same.pdf", contentType: "application/pdf", content: content, level: "medium"})
	}

	var wg sync.WaitGroup
	bodies := make([]string, n)
	codes := make([]int, n)
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := srv.serve(reqs[i])
			codes[i] = rec.Code
			bodies[i] = rec.Body.String()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, http.StatusOK, codes[i])
		assert.Equal(t, fmt.Sprintf("%s%% request %d\n", samplePDF, i), bodies[i], "request %d got another request's output", i)
	}
	srv.assertDirsEmpty(t)
}

func TestHandleCompress_ClientGoneKillsProcessor(t *testing.T) {
	fake := pdftest.NewSlow(t, 10*time.Second)
	srv := newTestServer(t, fake.Path)

	ctx, cancel := context.WithCancel(context.Background())
	req := newUploadRequest(t, upload{filename: "a.pdf", contentType: PDFMimeType, content: samplePDF, level: "high"}).WithContext(ctx)
	time.AfterFunc(100*time.Millisecond, cancel)

	rec := httptest.NewRecorder()
	started := time.Now()
	srv.handler.ServeHTTP(rec, req)

	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	srv.assertDirsEmpty(t)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, pdftest.NewCopying(t).Path)

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"pdf_compress"}`, rec.Body.String())
}

func TestStaticIndex(t *testing.T) {
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>compress</h1>"), 0o644))
	srv := newTestServer(t, pdftest.NewCopying(t).Path, func(c *config.Config) { c.StaticDir = static })

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "compress")
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "compressed_sample.pdf", DownloadName("sample.pdf"))
}
