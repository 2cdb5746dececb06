package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Watcher holds feed-watcher (detecting context) configuration.
type Watcher struct {
	// HTTPAddr is the stats/settings API listen address
	// Optional. Defaults to ":8080"
	HTTPAddr string

	// FeedURL is the page the poller watches for new posts
	// Required unless the pipeline is driven as a library
	FeedURL string

	// PollInterval is the feed polling period
	// Optional. Defaults to 2s
	PollInterval time.Duration

	// ScorerWSURL is the scorer worker's websocket channel endpoint
	// Optional. Empty runs an embedded scorer in-process
	ScorerWSURL string

	// ScorerHTTPURL is the scorer worker's HTTP base URL, probed for
	// health before dialing the channel
	// Optional
	ScorerHTTPURL string

	// ModelPath is the primary classifier weights file (embedded mode)
	// Optional. Missing file falls back to the heuristic scorer
	ModelPath string

	// BatchSize, Debounce, RetryDelay tune the batcher
	BatchSize  int
	Debounce   time.Duration
	RetryDelay time.Duration

	// LabelThreshold converts scores to labels (embedded mode)
	LabelThreshold float64

	// FlagThreshold gates flagging of the fixed negative label
	FlagThreshold float64

	// BlockedTopics flag unconditionally when a label matches
	BlockedTopics []string

	// DebugEnabled turns on per-item reconciliation logging
	DebugEnabled bool
}

// Worker holds scorer-worker (scoring context) configuration.
type Worker struct {
	// HTTPAddr is the worker listen address
	// Optional. Defaults to ":8081"
	HTTPAddr string

	// ModelPath is the primary classifier weights file
	// Optional. Missing file falls back to the heuristic scorer
	ModelPath string

	// LabelThreshold converts scores to labels
	// Optional. Defaults to 0.7
	LabelThreshold float64
}

// WatcherFromEnv resolves watcher configuration from the environment.
func WatcherFromEnv() Watcher {
	return Watcher{
		HTTPAddr:       envStr("WATCHER_HTTP_ADDR", ":8080"),
		FeedURL:        os.Getenv("FEED_URL"),
		PollInterval:   envDuration("POLL_INTERVAL", 2*time.Second),
		ScorerWSURL:    os.Getenv("SCORER_WS_URL"),
		ScorerHTTPURL:  os.Getenv("SCORER_HTTP_URL"),
		ModelPath:      os.Getenv("MODEL_PATH"),
		BatchSize:      envInt("BATCH_SIZE", 5),
		Debounce:       envDuration("BATCH_DEBOUNCE", 100*time.Millisecond),
		RetryDelay:     envDuration("FLUSH_RETRY_DELAY", 500*time.Millisecond),
		LabelThreshold: envFloat("LABEL_THRESHOLD", 0.7),
		FlagThreshold:  envFloat("FLAG_THRESHOLD", 0.7),
		BlockedTopics:  envList("BLOCKED_TOPICS"),
		DebugEnabled:   envBool("DEBUG_MODE"),
	}
}

// WorkerFromEnv resolves worker configuration from the environment.
func WorkerFromEnv() Worker {
	return Worker{
		HTTPAddr:       envStr("WORKER_HTTP_ADDR", ":8081"),
		ModelPath:      os.Getenv("MODEL_PATH"),
		LabelThreshold: envFloat("LABEL_THRESHOLD", 0.7),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
