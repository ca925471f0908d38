package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"pdf_compress/config"
	"pdf_compress/logger"
	"pdf_compress/pdf"
	"pdf_compress/storage"
)

// Processor starts a compression job and reports its single outcome on the returned channel.
type Processor interface {
	Start(ctx context.Context, job pdf.Job) <-chan pdf.Result
}

// Deps are the collaborators shared by all requests.
type Deps struct {
	Config    *config.Config
	Layout    *storage.Layout
	Processor Processor
	Logger    *logger.Logger
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(deps *Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(deps.Logger))
	r.MaxMultipartMemory = 8 << 20

	SetupRoutes(r, deps)
	return r
}

func SetupRoutes(r *gin.Engine, deps *Deps) {
	r.POST("/", func(c *gin.Context) { HandleCompress(c, deps) })

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "pdf_compress",
		})
	})

	// Optional web UI
	staticDir := deps.Config.StaticDir
	if staticDir == "" {
		return
	}
	if info, err := os.Stat(staticDir); err != nil || !info.IsDir() {
		return
	}
	r.Static("/static", staticDir)
	index := filepath.Join(staticDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		r.GET("/", func(c *gin.Context) { c.File(index) })
	}
}
