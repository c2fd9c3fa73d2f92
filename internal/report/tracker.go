package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Issue is the external ticket a tracker created for a suggestion.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	URL        string `json:"url"`
}

// Tracker is an external issue/notification integration. Callers absorb its
// errors; tracker trouble never blocks the suggestion lifecycle.
type Tracker interface {
	Name() string
	CreateIssue(ctx context.Context, title, body string) (Issue, error)
	Notify(ctx context.Context, message string) error
}

// HTTPTracker posts issues to a JSON issue-tracking endpoint, authenticated
// with a bearer token. Configure via SUPERCLAW_TRACKER_URL and
// SUPERCLAW_TRACKER_TOKEN.
type HTTPTracker struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (t HTTPTracker) Name() string { return "tracker" }

func (t HTTPTracker) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (t HTTPTracker) CreateIssue(ctx context.Context, title, body string) (Issue, error) {
	if t.BaseURL == "" {
		return Issue{}, fmt.Errorf("tracker URL not set")
	}
	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		return Issue{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/issues", bytes.NewReader(payload))
	if err != nil {
		return Issue{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return Issue{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Issue{}, fmt.Errorf("tracker returned %d", resp.StatusCode)
	}
	var issue Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return Issue{}, fmt.Errorf("tracker response: %w", err)
	}
	return issue, nil
}

func (t HTTPTracker) Notify(ctx context.Context, message string) error {
	if t.BaseURL == "" {
		return fmt.Errorf("tracker URL not set")
	}
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/notify", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tracker returned %d", resp.StatusCode)
	}
	return nil
}

// SlackNotifier is a notification-only tracker backed by a Slack incoming
// webhook. CreateIssue is unsupported.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
	Client     *http.Client
}

func (s SlackNotifier) Name() string { return "slack" }

func (s SlackNotifier) CreateIssue(ctx context.Context, title, body string) (Issue, error) {
	return Issue{}, fmt.Errorf("slack cannot create issues")
}

func (s SlackNotifier) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not set")
	}
	payload := map[string]any{"text": message}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
