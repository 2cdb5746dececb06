package feed

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Sink receives newly inserted feed subtrees. Implemented by the
// observer; duplicates are tolerated downstream.
type Sink interface {
	OnNodesAdded(*goquery.Selection)
}

// Poller turns a plain HTML page into a node-insertion event source.
// Each poll fetches the feed, and subtrees whose stable key has not been
// delivered before are handed to the sink at least once. Keys come from
// the post id attribute when present, else a hash of the subtree text.
type Poller struct {
	url        string
	interval   time.Duration
	selector   string
	sink       Sink
	httpClient *http.Client

	mu        sync.Mutex
	delivered map[string]struct{}
}

// NewPoller creates a feed poller. selector matches one post subtree.
func NewPoller(url string, interval time.Duration, selector string, sink Sink) *Poller {
	return &Poller{
		url:        url,
		interval:   interval,
		selector:   selector,
		sink:       sink,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delivered:  make(map[string]struct{}),
	}
}

// Run polls until the context is canceled. Fetch and parse failures are
// logged and retried on the next tick; the pipeline keeps running.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx); err != nil {
			log.Printf("Feed poll failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	fresh := p.selectNew(doc)
	if fresh != nil && fresh.Length() > 0 {
		p.sink.OnNodesAdded(fresh)
	}
	return nil
}

// selectNew returns the posts not delivered on a previous poll.
func (p *Poller) selectNew(doc *goquery.Document) *goquery.Selection {
	p.mu.Lock()
	defer p.mu.Unlock()

	var fresh *goquery.Selection
	doc.Find(p.selector).Each(func(_ int, s *goquery.Selection) {
		key := postKey(s)
		if _, ok := p.delivered[key]; ok {
			return
		}
		p.delivered[key] = struct{}{}
		if fresh == nil {
			fresh = s
		} else {
			fresh = fresh.AddSelection(s)
		}
	})
	return fresh
}

func postKey(s *goquery.Selection) string {
	if id, ok := s.Attr("data-post-id"); ok && id != "" {
		return "id:" + id
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		return "id:" + id
	}
	h := fnv.New64a()
	h.Write([]byte(strings.TrimSpace(s.Text())))
	return fmt.Sprintf("h:%x", h.Sum64())
}
