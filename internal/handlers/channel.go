package handlers

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/feedwatch/stream-classify-pipeline/internal/scorer"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ChannelHandler serves the websocket dispatch channel: classify
// request/response pairs correlated by batch id, the one-shot init
// exchange, and the fire-and-forget ready broadcast.
type ChannelHandler struct {
	gateway *scorer.Gateway
}

// NewChannelHandler creates a channel handler.
func NewChannelHandler(gateway *scorer.Gateway) *ChannelHandler {
	return &ChannelHandler{
		gateway: gateway,
	}
}

// HandleChannel handles GET /v1/channel - upgrades to the dispatch channel
func (h *ChannelHandler) HandleChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Channel upgrade failed: %v", err)
		return
	}

	session := &channelSession{
		conn:    conn,
		gateway: h.gateway,
	}
	session.serve()
}

// channelSession is one connected detecting context. Batches are scored
// concurrently so a slow batch does not delay later ones; the write mutex
// keeps the frames whole. Responses may therefore overtake each other,
// which the contract allows: correlation is by batch id, not order.
type channelSession struct {
	conn    *websocket.Conn
	gateway *scorer.Gateway
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func (s *channelSession) serve() {
	defer s.conn.Close()

	stop := make(chan struct{})
	s.broadcastReadyOnce(stop)
	defer close(stop)

	for {
		var req pipeline.ClassifyRequest
		if err := s.conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Channel read failed: %v", err)
			}
			break
		}

		switch req.Type {
		case pipeline.MsgInit:
			s.wg.Add(1)
			go s.handleInit()
		case pipeline.MsgClassify:
			s.wg.Add(1)
			go s.handleClassify(req)
		default:
			log.Printf("Channel: dropping unrecognized message type %q", req.Type)
		}
	}

	s.wg.Wait()
}

func (s *channelSession) handleInit() {
	defer s.wg.Done()

	err := s.gateway.EnsureReady(context.Background())
	s.write(pipeline.InitResponse{
		Type:  pipeline.MsgInit,
		Ready: err == nil && s.gateway.Ready(),
	})
}

func (s *channelSession) handleClassify(req pipeline.ClassifyRequest) {
	defer s.wg.Done()

	batch := pipeline.Batch{ID: req.BatchID, Items: req.Items}
	results, err := s.gateway.Classify(context.Background(), batch)

	resp := pipeline.ClassifyResponse{
		Type:    pipeline.MsgResult,
		BatchID: req.BatchID,
	}
	if err != nil {
		log.Printf("[%s] Classification failed: %v", req.BatchID, err)
		resp.Error = err.Error()
	} else {
		resp.Results = results
	}
	s.write(resp)
}

// broadcastReadyOnce pushes the ready broadcast to this session when the
// gateway first reaches a ready state, so a detecting context blocked in
// its deferred-flush loop proceeds without waiting out its retry delay.
func (s *channelSession) broadcastReadyOnce(stop <-chan struct{}) {
	go func() {
		select {
		case <-s.gateway.ReadyC():
			s.write(pipeline.ReadyBroadcast{Type: pipeline.MsgReadyBroadcast})
		case <-stop:
		}
	}()
}

func (s *channelSession) write(v interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		log.Printf("Channel write failed: %v", err)
	}
}
