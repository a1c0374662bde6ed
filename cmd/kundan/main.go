package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/kundan/internal/app"
	"github.com/ayusman/kundan/internal/assets"
	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/internal/config"
	"github.com/ayusman/kundan/internal/log"
	"github.com/ayusman/kundan/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file with KUNDAN_* settings")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.L().WithError(err).Fatal("Failed to load configuration")
	}

	log.Init(log.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	logger := log.Component("main")
	logger.Info("Kundan - live jewelry try-on")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	st, err := catalog.New(cfg.DBPath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open catalog")
	}
	defer st.Close()

	images := assets.NewLoader(st.Products(), filepath.Join(cfg.DataDir, "products"), log.Component("assets"))

	application := app.New(app.Config{
		Settings: cfg,
		Products: st.Products(),
		Images:   images,
		Logger:   log.Component("app"),
	})
	defer application.Close()

	webDir := cfg.StaticDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		logger.WithField("dir", webDir).Info("Serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:     webDir,
		Catalog:       st,
		Images:        images,
		App:           application,
		FrameInterval: time.Second / time.Duration(cfg.FPS),
		Logger:        log.Component("server"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.Addr) }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server failed")
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Server shutdown")
		}
	}
}

// findWebDir returns the first existing web directory among "web",
// "../web", "../../web" and <dataDir>/web, or "" when none exists.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
