package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/feedwatch/stream-classify-pipeline/internal/scorer"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// ClassifyHandler serves one-shot HTTP classification requests.
type ClassifyHandler struct {
	gateway *scorer.Gateway
}

// NewClassifyHandler creates a classify handler.
func NewClassifyHandler(gateway *scorer.Gateway) *ClassifyHandler {
	return &ClassifyHandler{
		gateway: gateway,
	}
}

// HandleClassify handles POST /v1/classify - scores a batch synchronously
func (h *ClassifyHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if req.BatchID == "" {
		http.Error(w, "batch_id is required", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "items are required", http.StatusBadRequest)
		return
	}

	log.Printf("[%s] Classifying batch of %d items", req.BatchID, len(req.Items))

	results, err := h.gateway.Classify(r.Context(), pipeline.Batch{ID: req.BatchID, Items: req.Items})
	if err != nil {
		log.Printf("[%s] Classification failed: %v", req.BatchID, err)
		http.Error(w, fmt.Sprintf("Classification failed: %v", err), http.StatusInternalServerError)
		return
	}

	resp := pipeline.ClassifyResponse{
		BatchID: req.BatchID,
		Results: results,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// HandleHealth handles GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
