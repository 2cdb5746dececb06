package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// Client is an HTTP client for the scorer worker's one-shot API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new scorer worker client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithHTTPClient creates a new scorer worker client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Classify scores one batch over HTTP
func (c *Client) Classify(ctx context.Context, batch pipeline.Batch) ([]pipeline.Result, error) {
	// Marshal request
	body, err := json.Marshal(pipeline.ClassifyRequest{
		Type:    pipeline.MsgClassify,
		BatchID: batch.ID,
		Items:   batch.Items,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Create HTTP request
	url := fmt.Sprintf("%s/v1/classify", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Execute request
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	// Parse response
	var classifyResp pipeline.ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&classifyResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if classifyResp.Error != "" {
		return nil, fmt.Errorf("classification failed: %s", classifyResp.Error)
	}

	return classifyResp.Results, nil
}

// Health checks whether the scorer worker is reachable
func (c *Client) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
