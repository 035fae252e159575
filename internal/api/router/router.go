package router

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-converter/internal/api/handlers/image"
	"github.com/aliskhannn/image-converter/internal/metrics"
	"github.com/aliskhannn/image-converter/internal/middleware"
)

// Setup builds the HTTP engine. m may be nil to run without metrics, and an
// empty publicDir disables static file serving.
func Setup(h *image.Handler, m *metrics.Metrics, publicDir string) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())
	r.Use(middleware.TracingMiddleware())
	if m != nil {
		r.Use(m.Middleware)
	}

	r.POST("/preview", h.Preview)  // live preview, PNG body
	r.POST("/upload", h.Upload)    // full-size render, returns imageUrl
	r.GET("/download", h.Download) // converted download by imageUrl
	r.GET("/healthz", h.Healthz)

	if m != nil {
		metricsHandler := m.Handler()
		r.GET("/metrics", func(c *ginext.Context) {
			metricsHandler.ServeHTTP(c.Writer, c.Request)
		})
	}

	// Built frontend, served for every path no route matched.
	if publicDir != "" {
		files := http.FileServer(http.Dir(publicDir))
		r.NoRoute(func(c *ginext.Context) {
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}
