// Package gsc wraps the external URL inspection and indexing API.
package gsc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/voralis/indexwatch/internal/indexer"
	"github.com/voralis/indexwatch/internal/metrics"
)

// APIError is a non-2xx response from the external service. It marks a
// per-item failure, never a batch abort.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("external api status %d: %s", e.StatusCode, e.Body)
}

// Config controls Client behavior.
type Config struct {
	InspectEndpoint string
	SubmitEndpoint  string
	Timeout         time.Duration
}

// Client calls the inspection and indexing endpoints with bounded timeouts.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger
}

// NewClient constructs a Client. A nil httpClient falls back to a default
// client; the per-call timeout comes from cfg.
func NewClient(httpClient *http.Client, cfg Config, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: httpClient, cfg: cfg, logger: logger}
}

type inspectRequest struct {
	InspectionURL string `json:"inspectionUrl"`
	SiteURL       string `json:"siteUrl"`
}

type inspectResponse struct {
	InspectionResult *struct {
		IndexStatusResult *IndexStatusResult `json:"indexStatusResult"`
	} `json:"inspectionResult"`
}

type submitRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Inspect performs one synchronous inspection call and classifies the result.
func (c *Client) Inspect(ctx context.Context, token, pageURL, siteURL string) (indexer.InspectionOutcome, error) {
	start := time.Now()
	payload := inspectRequest{InspectionURL: pageURL, SiteURL: siteURL}
	body, err := c.post(ctx, token, c.cfg.InspectEndpoint, payload)
	if err != nil {
		metrics.ObserveExternalCall("inspect", "failure", time.Since(start))
		return indexer.InspectionOutcome{}, err
	}
	metrics.ObserveExternalCall("inspect", "success", time.Since(start))

	var resp inspectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return indexer.InspectionOutcome{}, fmt.Errorf("decode inspect response: %w", err)
	}
	var status *IndexStatusResult
	if resp.InspectionResult != nil {
		status = resp.InspectionResult.IndexStatusResult
	}
	return outcomeFromStatus(status), nil
}

// Submit notifies the indexing endpoint about a published or removed URL.
func (c *Client) Submit(ctx context.Context, token, pageURL string, action indexer.SubmitAction) error {
	start := time.Now()
	payload := submitRequest{URL: pageURL, Type: string(action)}
	if _, err := c.post(ctx, token, c.cfg.SubmitEndpoint, payload); err != nil {
		metrics.ObserveExternalCall("submit", "failure", time.Since(start))
		return err
	}
	metrics.ObserveExternalCall("submit", "success", time.Since(start))
	return nil
}

func (c *Client) post(ctx context.Context, token, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("close response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func outcomeFromStatus(status *IndexStatusResult) indexer.InspectionOutcome {
	out := indexer.InspectionOutcome{Verdict: MapVerdict(status)}
	if status == nil {
		return out
	}
	out.CoverageState = status.CoverageState
	out.IndexingState = status.IndexingState
	out.RobotsState = status.RobotsTxtState
	out.PageFetchState = status.PageFetchState
	out.GoogleCanonical = status.GoogleCanonical
	if status.LastCrawlTime != "" {
		if t, err := time.Parse(time.RFC3339, status.LastCrawlTime); err == nil {
			utc := t.UTC()
			out.LastCrawlTime = &utc
		}
	}
	return out
}
