// Package server provides the HTTP server of the try-on service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/kundan/internal/app"
	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/internal/log"
	"github.com/ayusman/kundan/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Catalog   *catalog.Store
	// Images is told when a product changes so stale images are dropped.
	Images api.ImageCache
	App    *app.App
	// FrameInterval paces the MJPEG stream and the anchor feed.
	FrameInterval time.Duration
	Logger        *logrus.Entry
}

// Server is the HTTP front end of the try-on service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    *logrus.Entry
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Discard()
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = 66 * time.Millisecond
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    config.Logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Catalog != nil {
		products := api.NewProductHandler(s.config.Catalog.Products(), s.config.Images, s.log)
		s.mux.Handle("/api/products", products)
		s.mux.Handle("/api/products/", products)
	}

	if s.config.App != nil {
		s.mux.Handle("/api/tryon", api.NewTryOnHandler(s.config.App, s.log))
		s.mux.Handle("/api/tryon/snapshot", NewSnapshotHandler(s.config.App))
		s.mux.Handle("/api/tryon/stream", NewStreamHandler(s.config.App, s.config.FrameInterval))
		s.mux.Handle("/api/anchors", NewAnchorsHandler(s.config.App, s.config.FrameInterval, s.log))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		if sess, err := s.config.App.Session(); err == nil {
			response["session"] = sess.State()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on addr and blocks until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithField("addr", addr).Info("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
