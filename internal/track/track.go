package track

// Origin is a non-owning handle back to the feed element a candidate was
// extracted from. The host page may detach the element at any time;
// Alive reporting false is a normal outcome, never an error, and every
// consumer must tolerate it.
type Origin interface {
	// Alive reports whether the origin element is still attached
	Alive() bool

	// MarkStatus records a per-item status on the origin element
	MarkStatus(status string)

	// MarkOutcome records the final classification on the origin element
	MarkOutcome(status, label string, score float64)
}

// Candidate is one detected unit of text flowing between the observer and
// the batcher. The Origin reference never crosses the dispatch channel.
type Candidate struct {
	ID     string
	Text   string
	Origin Origin
}
