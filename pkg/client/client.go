// Package client provides a Go SDK for the Superclaw HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// Client calls the Superclaw HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3841"
	APIKey     string       // optional; set for X-API-Key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:3841").
// APIKey is optional; when set, requests carry the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// OvernightStatus mirrors the GET /overnight payload.
type OvernightStatus struct {
	OvernightMode bool                 `json:"overnight_mode"`
	ActiveRun     *models.OvernightRun `json:"active_run,omitempty"`
	QueuedCount   int64                `json:"queued_count"`
}

// Overnight returns overnight mode, the active run (if any) and queue depth.
func (c *Client) Overnight(ctx context.Context) (*OvernightStatus, error) {
	var out OvernightStatus
	err := c.doJSON(ctx, http.MethodGet, "/overnight", nil, &out)
	return &out, err
}

// StartOvernight starts an overnight run over the queued suggestions.
func (c *Client) StartOvernight(ctx context.Context) (*models.OvernightRun, error) {
	var out models.OvernightRun
	err := c.doJSON(ctx, http.MethodPost, "/overnight/start", struct{}{}, &out)
	return &out, err
}

// StopOvernight stops the active overnight run. Safe to call when none is running.
func (c *Client) StopOvernight(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/overnight/stop", struct{}{}, nil)
}

// Route asks the router which agent should handle the given text.
func (c *Client) Route(ctx context.Context, text string) (*models.RouteDecision, error) {
	var out models.RouteDecision
	err := c.doJSON(ctx, http.MethodPost, "/route", map[string]string{"text": text}, &out)
	return &out, err
}

// ListAgents returns all agent profiles.
func (c *Client) ListAgents(ctx context.Context) ([]models.AgentProfile, error) {
	var out []models.AgentProfile
	err := c.doJSON(ctx, http.MethodGet, "/agents", nil, &out)
	return out, err
}

// ListSuggestions returns suggestions, optionally filtered by status (limit 0 = default).
func (c *Client) ListSuggestions(ctx context.Context, status string, limit int) ([]models.Suggestion, error) {
	path := "/suggestions"
	sep := "?"
	if status != "" {
		path += sep + "status=" + status
		sep = "&"
	}
	if limit > 0 {
		path += sep + "limit=" + strconv.Itoa(limit)
	}
	var out []models.Suggestion
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CreateSuggestion creates a suggestion and returns it.
func (c *Client) CreateSuggestion(ctx context.Context, s models.Suggestion) (*models.Suggestion, error) {
	var out models.Suggestion
	err := c.doJSON(ctx, http.MethodPost, "/suggestions", s, &out)
	return &out, err
}

// TransitionSuggestion moves a suggestion to the given status.
func (c *Client) TransitionSuggestion(ctx context.Context, suggestionID int64, to string) (*models.Suggestion, error) {
	var out models.Suggestion
	path := "/suggestions/" + strconv.FormatInt(suggestionID, 10) + "/transition"
	err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"to": to}, &out)
	return &out, err
}

// RefreshIntel triggers an intel refresh. force bypasses the rate limit.
func (c *Client) RefreshIntel(ctx context.Context, force bool) (*models.RefreshResult, error) {
	path := "/intel/refresh"
	if force {
		path += "?force=true"
	}
	var out models.RefreshResult
	err := c.doJSON(ctx, http.MethodPost, path, struct{}{}, &out)
	return &out, err
}
