package channel

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// WebSocket is the client side of the cross-context dispatch channel.
// The detecting and scoring contexts share no memory; requests and
// responses are JSON messages correlated by batch id, so responses for
// different batches may arrive in any order. The scorer's ready broadcast
// and init responses feed the readiness gate.
type WebSocket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan pipeline.ClassifyResponse
	initCh  chan bool

	ready     bool
	readyCh   chan struct{}
	readyOnce sync.Once

	closed    chan struct{}
	closeErr  error
	closeOnce sync.Once
}

// inbound is the union of every message the scoring context sends.
type inbound struct {
	Type    string            `json:"type"`
	BatchID string            `json:"batch_id"`
	Results []pipeline.Result `json:"results"`
	Error   string            `json:"error"`
	Ready   *bool             `json:"ready"`
}

// DialWebSocket connects to the scorer worker's channel endpoint and
// starts the read loop.
func DialWebSocket(ctx context.Context, url string) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	ws := &WebSocket{
		conn:    conn,
		pending: make(map[string]chan pipeline.ClassifyResponse),
		initCh:  make(chan bool, 1),
		readyCh: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	go ws.readLoop()
	return ws, nil
}

func (ws *WebSocket) readLoop() {
	for {
		var msg inbound
		if err := ws.conn.ReadJSON(&msg); err != nil {
			ws.teardown(ErrUnreachable)
			return
		}

		switch {
		case msg.Type == pipeline.MsgReadyBroadcast:
			ws.markReady()
		case msg.Ready != nil:
			if *msg.Ready {
				ws.markReady()
			}
			select {
			case ws.initCh <- *msg.Ready:
			default:
			}
		case msg.BatchID != "":
			ws.route(pipeline.ClassifyResponse{
				BatchID: msg.BatchID,
				Results: msg.Results,
				Error:   msg.Error,
			})
		default:
			log.Printf("Dispatch channel: dropping unrecognized message type %q", msg.Type)
		}
	}
}

func (ws *WebSocket) route(resp pipeline.ClassifyResponse) {
	ws.mu.Lock()
	ch, ok := ws.pending[resp.BatchID]
	if ok {
		delete(ws.pending, resp.BatchID)
	}
	ws.mu.Unlock()

	if !ok {
		// Late or duplicate delivery for a batch nobody is waiting on.
		log.Printf("Dispatch channel: dropping response for unknown batch %s", resp.BatchID)
		return
	}
	ch <- resp
}

func (ws *WebSocket) markReady() {
	ws.mu.Lock()
	ws.ready = true
	ws.mu.Unlock()
	ws.readyOnce.Do(func() { close(ws.readyCh) })
}

// teardown fails every pending call and closes the connection. The
// cause is ErrClosed for a local Close and ErrUnreachable when the
// connection died underneath us.
func (ws *WebSocket) teardown(cause error) {
	ws.closeOnce.Do(func() {
		ws.closeErr = cause
		close(ws.closed)
		ws.conn.Close()
	})

	ws.mu.Lock()
	pending := ws.pending
	ws.pending = make(map[string]chan pipeline.ClassifyResponse)
	ws.mu.Unlock()

	for id, ch := range pending {
		ch <- pipeline.ClassifyResponse{BatchID: id, Error: ws.closeErr.Error()}
	}
}

func (ws *WebSocket) writeJSON(v interface{}) error {
	select {
	case <-ws.closed:
		return ws.closeErr
	default:
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteJSON(v); err != nil {
		ws.teardown(ErrUnreachable)
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

// Init sends the one-shot init request and waits for the ready report.
func (ws *WebSocket) Init(ctx context.Context) (bool, error) {
	if err := ws.writeJSON(pipeline.InitRequest{Type: pipeline.MsgInit}); err != nil {
		return false, err
	}
	select {
	case ready := <-ws.initCh:
		return ready, nil
	case <-ws.closed:
		return false, ws.closeErr
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Classify dispatches a batch and waits for the response carrying the
// same batch id.
func (ws *WebSocket) Classify(ctx context.Context, batch pipeline.Batch) ([]pipeline.Result, error) {
	respCh := make(chan pipeline.ClassifyResponse, 1)

	ws.mu.Lock()
	ws.pending[batch.ID] = respCh
	ws.mu.Unlock()

	req := pipeline.ClassifyRequest{
		Type:    pipeline.MsgClassify,
		BatchID: batch.ID,
		Items:   batch.Items,
	}
	if err := ws.writeJSON(req); err != nil {
		ws.drop(batch.ID)
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrUnreachable, resp.Error)
		}
		return resp.Results, nil
	case <-ws.closed:
		ws.drop(batch.ID)
		return nil, ws.closeErr
	case <-ctx.Done():
		ws.drop(batch.ID)
		return nil, ctx.Err()
	}
}

func (ws *WebSocket) drop(batchID string) {
	ws.mu.Lock()
	delete(ws.pending, batchID)
	ws.mu.Unlock()
}

// Close tears the channel down.
func (ws *WebSocket) Close() error {
	ws.teardown(ErrClosed)
	return nil
}

// Gate returns the remote readiness gate, fed by init responses and
// ready broadcasts.
func (ws *WebSocket) Gate() Gate {
	return (*remoteGate)(ws)
}

type remoteGate WebSocket

func (g *remoteGate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

func (g *remoteGate) ReadyC() <-chan struct{} {
	return g.readyCh
}
