package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-catalog/internal/catalog"
	"photo-catalog/internal/exiftool"
	"photo-catalog/internal/handlers"
	"photo-catalog/internal/logging"
	"photo-catalog/internal/media"
	"photo-catalog/internal/pipeline"
	"photo-catalog/internal/startup"
	"photo-catalog/internal/vision"
)

func main() {
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	// Accelerated resize is best effort unless explicitly required.
	if err := media.InitVips(); err != nil {
		if config.RequireVips {
			logging.Fatal("Accelerated image processing required but unavailable: %v", err)
		}
		logging.Warn("Accelerated image processing unavailable, using pure-Go resize: %v", err)
	}
	defer media.ShutdownVips()

	exif, err := exiftool.New(config.ExiftoolBin)
	if err != nil {
		logging.Fatal("ExifTool check failed: %v", err)
	}

	ctx := context.Background()
	cat, err := catalog.Open(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to open catalog: %v", err)
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logging.Error("Failed to close catalog: %v", err)
		}
	}()

	derivs, err := media.NewDerivativeStore(config.DerivativeDir)
	if err != nil {
		logging.Fatal("Failed to prepare derivative storage: %v", err)
	}

	engine := vision.NewEngine(vision.Options{Accelerated: config.AccelerateVision})
	logging.Info("Vision engine: %s", engine.Name())

	imports := pipeline.NewManager(cat, exif, derivs, engine)
	h := handlers.New(cat, imports, derivs)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go handleShutdown(srv, imports)

	logging.Info("Listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
	logging.Info("Server stopped")
}

func handleShutdown(srv *http.Server, imports *pipeline.Manager) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Received %s, shutting down", sig)

	// Stop any running import first so the persist stage quiesces
	// before the database closes.
	if err := imports.Cancel(); err == nil {
		logging.Info("Cancelled running import")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("HTTP shutdown error: %v", err)
	}
}
