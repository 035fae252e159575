package server

import (
	"net/http"
	"time"

	"github.com/aliskhannn/image-converter/internal/config"
)

// New creates the HTTP server for handler with the timeouts from cfg.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
