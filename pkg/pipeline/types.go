package pipeline

// Item is the snapshot of one candidate that crosses the dispatch channel.
// It carries no origin reference; correlation back to the live feed element
// happens in the detecting context via the inflight registry.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Batch is an immutable, ordered set of item snapshots dispatched together.
// A batch is dispatched at most once; its ID is unique for the process
// lifetime and is the only correlation key across the channel.
type Batch struct {
	ID    string `json:"batch_id"`
	Items []Item `json:"items"`
}

// Result is the classification outcome for a single item.
// Source records which scorer variant produced it; it is observability
// only and never drives control flow.
type Result struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// ClassifyRequest is the cross-context request message.
type ClassifyRequest struct {
	Type    string `json:"type"`
	BatchID string `json:"batch_id"`
	Items   []Item `json:"items"`
}

// ClassifyResponse is the cross-context response message. Either Results
// or Error is set; BatchID always echoes the request.
type ClassifyResponse struct {
	Type    string   `json:"type,omitempty"`
	BatchID string   `json:"batch_id"`
	Results []Result `json:"results,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// InitRequest asks the scoring context to bring up its classifier.
type InitRequest struct {
	Type string `json:"type"`
}

// InitResponse reports whether the scoring context reached a ready state.
type InitResponse struct {
	Type  string `json:"type,omitempty"`
	Ready bool   `json:"ready"`
}

// ReadyBroadcast is the fire-and-forget notification sent when the scorer
// first reaches a ready state.
type ReadyBroadcast struct {
	Type string `json:"type"`
}

// Message type constants
const (
	MsgClassify       = "classify"
	MsgInit           = "init"
	MsgReadyBroadcast = "ready-broadcast"
	MsgResult         = "result"
)

// Label constants
const (
	LabelRagebait = "ragebait"
	LabelSafe     = "safe"
)

// Scorer source constants
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
)

// Per-item UI status constants
const (
	StatusProcessing = "processing"
	StatusFlagged    = "flagged"
	StatusSafe       = "safe"
	StatusError      = "error"
)

// StatsSnapshot is a point-in-time copy of the aggregate counters,
// derived strictly from reconciliation events.
type StatsSnapshot struct {
	Total      int64 `json:"total"`
	Flagged    int64 `json:"flagged"`
	Safe       int64 `json:"safe"`
	Errors     int64 `json:"errors"`
	Processing int64 `json:"processing"`
}

// Settings is the user-facing configuration delivered by the settings
// change event. It applies going forward, never retroactively.
type Settings struct {
	DebugEnabled  bool     `json:"debug_enabled"`
	BlockedTopics []string `json:"blocked_topics"`
}
