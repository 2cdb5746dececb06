package runner

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const feedHTML = `<html><body><div id="feed">
	<article data-post-id="p1">
		<div class="post-text">DISGRACE OUTRAGE SCANDAL!!! you won't believe shocking DISGRACE OUTRAGE SCANDAL you won't believe</div>
	</article>
	<article data-post-id="p2">
		<div class="post-text">Planted the first tomatoes of the season this weekend, very relaxing.</div>
	</article>
	<article data-post-id="p3">
		<div class="post-text">hi :)</div>
	</article>
</div></body></html>`

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestEmbeddedEndToEnd(t *testing.T) {
	// No model path: the gateway falls back to the heuristic and the
	// pipeline still produces one result per item.
	p, err := New(Config{
		BatchSize:  2,
		Debounce:   20 * time.Millisecond,
		RetryDelay: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Shutdown()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(feedHTML))
	if err != nil {
		t.Fatalf("failed to parse feed: %v", err)
	}
	p.Observer.OnNodesAdded(doc.Find("article"))

	// p3 is below the minimum text length and never enters the pipeline;
	// the two real posts flush as one batch on the size threshold.
	waitFor(t, 5*time.Second, func() bool {
		snap := p.Stats.Snapshot()
		return snap.Total == 2 && snap.Processing == 0
	})

	snap := p.Stats.Snapshot()
	if snap.Flagged != 1 || snap.Safe != 1 || snap.Errors != 0 {
		t.Fatalf("stats: %+v", snap)
	}

	if status, _ := doc.Find(`article[data-post-id="p1"]`).Attr("data-scan-status"); status != "flagged" {
		t.Fatalf("p1 status = %q, want flagged", status)
	}
	if status, _ := doc.Find(`article[data-post-id="p2"]`).Attr("data-scan-status"); status != "safe" {
		t.Fatalf("p2 status = %q, want safe", status)
	}
	if _, ok := doc.Find(`article[data-post-id="p3"]`).Attr("data-scan-status"); ok {
		t.Fatal("p3 must never be marked")
	}

	if p.Registry.Len() != 0 {
		t.Fatalf("registry still holds %d batches", p.Registry.Len())
	}
}

func TestZeroValueConfigDefaults(t *testing.T) {
	// Omitted thresholds must default, not produce a gateway where every
	// score labels ragebait and every benign result is flagged.
	p, err := New(Config{
		BatchSize: 1,
		Debounce:  20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Shutdown()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><article data-post-id="p1">
			<div class="post-text">Planted the first tomatoes of the season this weekend.</div>
		</article></body></html>`))
	if err != nil {
		t.Fatalf("failed to parse feed: %v", err)
	}
	p.Observer.OnNodesAdded(doc.Find("article"))

	waitFor(t, 5*time.Second, func() bool {
		snap := p.Stats.Snapshot()
		return snap.Total == 1 && snap.Processing == 0
	})

	snap := p.Stats.Snapshot()
	if snap.Flagged != 0 || snap.Safe != 1 {
		t.Fatalf("benign text misclassified under default thresholds: %+v", snap)
	}
	if status, _ := doc.Find("article").Attr("data-scan-status"); status != "safe" {
		t.Fatalf("status = %q, want safe", status)
	}
}

func TestDuplicateInsertionEvents(t *testing.T) {
	p, err := New(Config{
		BatchSize:  10,
		Debounce:   20 * time.Millisecond,
		RetryDelay: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Shutdown()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(feedHTML))
	if err != nil {
		t.Fatalf("failed to parse feed: %v", err)
	}

	// The feed source may deliver the same insertion more than once.
	p.Observer.OnNodesAdded(doc.Find("article"))
	p.Observer.OnNodesAdded(doc.Find("article"))

	waitFor(t, 5*time.Second, func() bool {
		snap := p.Stats.Snapshot()
		return snap.Total == 2 && snap.Processing == 0
	})

	if snap := p.Stats.Snapshot(); snap.Total != 2 {
		t.Fatalf("duplicate insertions double-counted: %+v", snap)
	}
}
