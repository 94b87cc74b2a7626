package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drowsydetect/internal/config"
	"drowsydetect/internal/database"
	"drowsydetect/internal/detection"
	"drowsydetect/internal/handlers"
	"drowsydetect/internal/landmark"
	"drowsydetect/internal/pipeline"
	"drowsydetect/internal/services"
	"drowsydetect/internal/ws"
	"drowsydetect/pkg/log"
)

func main() {
	httpPort := flag.String("http-port", "", "HTTP port (overrides HTTP_PORT)")
	landmarkURL := flag.String("landmark-url", "", "landmark sidecar ws:// URL (overrides LANDMARK_WS_URL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "failed to load configuration")
	}
	if *httpPort != "" {
		cfg.HTTPPort = *httpPort
	}
	if *landmarkURL != "" {
		cfg.LandmarkWSURL = *landmarkURL
	}

	log.Info(log.Fields{
		"http_port":   cfg.HTTPPort,
		"landmark":    cfg.LandmarkWSURL,
		"environment": cfg.Environment,
		"database":    cfg.DSNForLog(),
	}, "starting drowsydetect server")

	db, err := database.Open(cfg.DSN())
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "database connection failed")
	}
	defer db.Close()
	repo := database.NewRepository(db)

	// The sidecar loads the model from disk; fetch it on its behalf so a
	// fresh deployment comes up without manual steps. A failed download is
	// not fatal: the sidecar may already have its own copy.
	modelCtx, cancelModel := context.WithTimeout(context.Background(), 5*time.Minute)
	if err := landmark.EnsureModel(modelCtx, cfg.ModelPath, cfg.ModelURLs); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "landmark model not available locally")
	}
	cancelModel()

	landmarker := landmark.NewClient(cfg.LandmarkWSURL)
	defer landmarker.Close()

	hub := ws.NewHub()
	metrics := services.NewMetrics()
	p := pipeline.New(detection.ThresholdsFromConfig(cfg), landmarker, repo, metrics, hub, cfg.CSVLogDir, cfg.EnableCSVLogging)

	h := handlers.New(repo, cfg, metrics, hub, p)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info(log.Fields{"addr": server.Addr}, "HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(log.Fields{"error": err.Error()}, "HTTP server failed")
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	log.Info(nil, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(log.Fields{"error": err.Error()}, "HTTP server shutdown failed")
	}

	hub.CloseAll()
	log.Info(nil, "server stopped")
}
