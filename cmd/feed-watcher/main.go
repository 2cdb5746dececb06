package main

import (
	"context"
	"encoding/json"
	"fmt"
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

	"github.com/feedwatch/stream-classify-pipeline/internal/config"
	"github.com/feedwatch/stream-classify-pipeline/internal/feed"
	"github.com/feedwatch/stream-classify-pipeline/internal/observer"
	"github.com/feedwatch/stream-classify-pipeline/pkg/client"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
	"github.com/feedwatch/stream-classify-pipeline/pkg/runner"
)

// Feed watcher: the detecting context. Polls the feed for new posts,
// runs the classification pipeline, and serves stats and settings.
// With SCORER_WS_URL unset it embeds the scorer in-process.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg := config.WatcherFromEnv()

	if cfg.FeedURL == "" {
		log.Fatalf("FEED_URL is required")
	}

	log.Printf("Feed Watcher")
	log.Printf("  HTTP address: %s", cfg.HTTPAddr)
	log.Printf("  Feed URL: %s", cfg.FeedURL)
	log.Printf("  Poll interval: %s", cfg.PollInterval)
	if cfg.ScorerWSURL != "" {
		log.Printf("  Mode: Remote scorer at %s", cfg.ScorerWSURL)
	} else {
		log.Printf("  Mode: Embedded scorer")
	}

	// Probe the worker before dialing the channel so an unreachable
	// scoring context fails loudly at startup instead of on first flush.
	if cfg.ScorerHTTPURL != "" {
		probe := client.New(cfg.ScorerHTTPURL)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := probe.Health(ctx); err != nil {
			log.Printf("Scorer worker health probe failed (continuing, dispatches may be rejected): %v", err)
		} else {
			log.Printf("✓ Scorer worker healthy at %s", cfg.ScorerHTTPURL)
		}
		cancel()
	}

	promRegistry := prometheus.NewRegistry()

	p, err := runner.New(runner.Config{
		ScorerWSURL:    cfg.ScorerWSURL,
		ModelPath:      cfg.ModelPath,
		BatchSize:      cfg.BatchSize,
		Debounce:       cfg.Debounce,
		RetryDelay:     cfg.RetryDelay,
		LabelThreshold: cfg.LabelThreshold,
		FlagThreshold:  cfg.FlagThreshold,
		BlockedTopics:  cfg.BlockedTopics,
		DebugEnabled:   cfg.DebugEnabled,
		Registerer:     promRegistry,
	})
	if err != nil {
		log.Fatalf("Failed to assemble pipeline: %v", err)
	}
	defer p.Shutdown()

	log.Printf("✓ Pipeline assembled")

	// Feed poller drives the observer with node-insertion events.
	pollCtx, stopPoll := context.WithCancel(context.Background())
	defer stopPoll()
	poller := feed.NewPoller(cfg.FeedURL, cfg.PollInterval, observer.DefaultCandidateSelector, p.Observer)
	go poller.Run(pollCtx)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", handleHealth)
	r.Get("/v1/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.Stats.Snapshot())
	})
	r.Put("/v1/settings", func(w http.ResponseWriter, req *http.Request) {
		var s pipeline.Settings
		if err := json.NewDecoder(req.Body).Decode(&s); err != nil {
			http.Error(w, fmt.Sprintf("Invalid settings: %v", err), http.StatusBadRequest)
			return
		}
		p.Reconciler.UpdateSettings(s)
		log.Printf("Settings updated: debug=%t blocked_topics=%v", s.DebugEnabled, s.BlockedTopics)
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Feed watcher starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	stopPoll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// handleHealth returns health status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
