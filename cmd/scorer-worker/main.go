package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feedwatch/stream-classify-pipeline/internal/classifier"
	"github.com/feedwatch/stream-classify-pipeline/internal/config"
	"github.com/feedwatch/stream-classify-pipeline/internal/handlers"
	"github.com/feedwatch/stream-classify-pipeline/internal/scorer"
)

// Scorer worker: the scoring context. Owns the classifier and the
// readiness state machine; serves the dispatch channel and a one-shot
// HTTP classification endpoint. Holds no feed state.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg := config.WorkerFromEnv()

	log.Printf("Scorer Worker")
	log.Printf("  HTTP address: %s", cfg.HTTPAddr)
	if cfg.ModelPath != "" {
		log.Printf("  Model path: %s", cfg.ModelPath)
	} else {
		log.Printf("  Model path: (none - heuristic fallback only)")
	}
	log.Printf("  Label threshold: %.2f", cfg.LabelThreshold)

	registry := prometheus.NewRegistry()

	gateway := scorer.NewGateway(func() (classifier.Classifier, error) {
		return classifier.NewLinear(cfg.ModelPath)
	}, cfg.LabelThreshold, registry)

	classifyHandler := handlers.NewClassifyHandler(gateway)
	channelHandler := handlers.NewChannelHandler(gateway)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", handlers.HandleHealth)
	r.Post("/v1/classify", classifyHandler.HandleClassify)
	r.Get("/v1/channel", channelHandler.HandleChannel)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	log.Printf("✓ Registered endpoints: /health /v1/classify /v1/channel /metrics")

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Scorer worker starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
