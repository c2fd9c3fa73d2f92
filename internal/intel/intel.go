// Package intel pulls market and product signals from configured feeds into the store.
package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// Source produces intel items from one upstream (a feed, an API, a scraper).
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]models.IntelItem, error)
}

// FeedSource reads a JSON array of items from an HTTP endpoint.
type FeedSource struct {
	FeedName string
	URL      string
	Client   *http.Client
}

func (f FeedSource) Name() string { return f.FeedName }

func (f FeedSource) Collect(ctx context.Context) ([]models.IntelItem, error) {
	if f.URL == "" {
		return nil, fmt.Errorf("feed %s has no URL", f.FeedName)
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed %s returned %d", f.FeedName, resp.StatusCode)
	}
	var items []models.IntelItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("feed %s: decode: %w", f.FeedName, err)
	}
	for i := range items {
		if items[i].Source == "" {
			items[i].Source = f.FeedName
		}
	}
	return items, nil
}

// SourcesFromEnv parses a comma-separated list of name=url pairs, e.g.
// SUPERCLAW_INTEL_FEEDS="hn=https://example.com/hn.json,gsc=https://example.com/gsc.json".
func SourcesFromEnv(value string) []Source {
	var out []Source
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(url) == "" {
			continue
		}
		out = append(out, FeedSource{FeedName: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return out
}

// Collector runs every source and appends what they return. A failing source
// is logged and skipped; one bad feed never blocks the others.
type Collector struct {
	Store   store.Store
	Sources []Source
	Logger  *slog.Logger
}

// Collect returns how many items were stored.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var stored int
	for _, src := range c.Sources {
		items, err := src.Collect(ctx)
		if err != nil {
			logger.Warn("intel source failed", "source", src.Name(), "error", err)
			continue
		}
		for _, item := range items {
			if item.Title == "" || item.Category == "" {
				logger.Warn("dropping intel item without title or category", "source", src.Name())
				continue
			}
			if _, err := c.Store.AppendIntel(ctx, item); err != nil {
				return stored, fmt.Errorf("append intel from %s: %w", src.Name(), err)
			}
			stored++
		}
		logger.Info("intel source collected", "source", src.Name(), "items", len(items))
	}
	return stored, nil
}
