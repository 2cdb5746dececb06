package observer

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/feedwatch/stream-classify-pipeline/internal/track"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// Enqueuer accepts detected candidates; implemented by the batcher.
type Enqueuer interface {
	Enqueue(track.Candidate)
}

// Config holds the detection and extraction parameters.
type Config struct {
	// CandidateSelector matches elements that carry one feed item
	CandidateSelector string

	// TextSelector is the precise primary hook for the item text
	TextSelector string

	// NoiseSelector matches substructures excluded from fallback
	// extraction: controls, timestamps, identity chrome
	NoiseSelector string

	// MinTextLen drops extracted text shorter than this (trimmed)
	MinTextLen int

	// MaxTextLen truncates text before it leaves the process
	MaxTextLen int
}

// Defaults used when a Config field is zero.
const (
	DefaultCandidateSelector = "article, [data-post-id]"
	DefaultTextSelector      = ".post-text, [data-post-text]"
	DefaultNoiseSelector     = "a, button, time, nav, [role=button], .avatar, .username, .actions"
	DefaultMinTextLen        = 10
	DefaultMaxTextLen        = 500
)

// Observer watches inserted feed subtrees for candidate elements,
// deduplicates them by node identity, extracts their text, and enqueues
// them for batching. The host markup is not under this system's control:
// extraction tries a precise primary selector first and falls back to
// collecting all text with known-noise substructures stripped.
type Observer struct {
	cfg   Config
	sink  Enqueuer
	stats *track.Stats

	mu   sync.Mutex
	seen map[*html.Node]struct{}
}

// New creates an observer feeding the given sink.
func New(cfg Config, sink Enqueuer, stats *track.Stats) *Observer {
	if cfg.CandidateSelector == "" {
		cfg.CandidateSelector = DefaultCandidateSelector
	}
	if cfg.TextSelector == "" {
		cfg.TextSelector = DefaultTextSelector
	}
	if cfg.NoiseSelector == "" {
		cfg.NoiseSelector = DefaultNoiseSelector
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = DefaultMinTextLen
	}
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = DefaultMaxTextLen
	}
	return &Observer{
		cfg:   cfg,
		sink:  sink,
		stats: stats,
		seen:  make(map[*html.Node]struct{}),
	}
}

// OnNodesAdded processes newly inserted subtrees. Duplicate deliveries
// are tolerated: an origin already seen is never re-queued. Candidates
// may be the inserted nodes themselves or any of their descendants.
func (o *Observer) OnNodesAdded(sel *goquery.Selection) {
	if sel == nil {
		return
	}
	candidates := sel.Filter(o.cfg.CandidateSelector).AddSelection(sel.Find(o.cfg.CandidateSelector))
	candidates.Each(func(_ int, s *goquery.Selection) {
		o.observe(s)
	})
}

func (o *Observer) observe(s *goquery.Selection) {
	if len(s.Nodes) == 0 {
		return
	}
	node := s.Nodes[0]

	// Dedup is by identity of the origin node, not by text content.
	o.mu.Lock()
	if _, dup := o.seen[node]; dup {
		o.mu.Unlock()
		return
	}
	o.seen[node] = struct{}{}
	o.mu.Unlock()

	text := strings.TrimSpace(o.extract(s))
	if utf8.RuneCountInString(text) < o.cfg.MinTextLen {
		// No signal; dropped silently.
		return
	}
	text = truncate(text, o.cfg.MaxTextLen)

	origin := &nodeOrigin{node: node}

	// Mark processing before any dispatch so visible state never has a
	// gap between detection and classification.
	origin.MarkStatus(pipeline.StatusProcessing)
	o.stats.StartProcessing()

	o.sink.Enqueue(track.Candidate{
		ID:     uuid.New().String(),
		Text:   text,
		Origin: origin,
	})
}

// extract returns the item text: the primary selector when present,
// otherwise all descendant text with noise substructures removed.
func (o *Observer) extract(s *goquery.Selection) string {
	primary := s.Find(o.cfg.TextSelector)
	if primary.Length() > 0 {
		return primary.First().Text()
	}

	clone := s.Clone()
	clone.Find(o.cfg.NoiseSelector).Remove()
	return clone.Text()
}

// Forget releases origins the host has evicted, so seen-membership does
// not outlive the elements it refers to.
func (o *Observer) Forget(sel *goquery.Selection) {
	if sel == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, n := range sel.Nodes {
		forget(o.seen, n)
	}
}

func forget(seen map[*html.Node]struct{}, n *html.Node) {
	delete(seen, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		forget(seen, c)
	}
}

// SeenLen returns the number of tracked origins.
func (o *Observer) SeenLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.seen)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
