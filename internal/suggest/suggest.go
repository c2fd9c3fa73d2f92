// Package suggest turns unread intel and the standing opportunity list into
// pending suggestions, deduplicated by exact title against open suggestions.
package suggest

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

//go:embed standing.yaml
var standingYAML []byte

// DefaultRelevanceThreshold is the minimum intel relevance that feeds a suggestion.
const DefaultRelevanceThreshold = 60

type standingEntry struct {
	Title       string `yaml:"title"`
	Why         string `yaml:"why"`
	Effort      string `yaml:"effort"`
	Impact      string `yaml:"impact"`
	ImpactScore int    `yaml:"impact_score"`
	Category    string `yaml:"category"`
	Priority    int    `yaml:"priority"`
}

type standingFile struct {
	Suggestions []standingEntry `yaml:"suggestions"`
}

// Generator creates suggestions from intel and the standing list.
type Generator struct {
	Store              store.Store
	RelevanceThreshold int
	Logger             *slog.Logger
}

// Generate runs both passes and returns how many suggestions were created.
func (g *Generator) Generate(ctx context.Context) (int, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	created, err := g.fromIntel(ctx, logger)
	if err != nil {
		return created, err
	}
	n, err := g.fromStanding(ctx, logger)
	created += n
	return created, err
}

// fromIntel groups unread relevant intel by category, builds one suggestion per
// category, and marks the consumed items read.
func (g *Generator) fromIntel(ctx context.Context, logger *slog.Logger) (int, error) {
	threshold := g.RelevanceThreshold
	if threshold <= 0 {
		threshold = DefaultRelevanceThreshold
	}
	items, err := g.Store.ListUnreadIntelAbove(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("list unread intel: %w", err)
	}
	byCategory := make(map[string][]models.IntelItem)
	for _, it := range items {
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var created int
	for _, cat := range categories {
		group := byCategory[cat]
		sg := suggestionFromIntel(cat, group)

		exists, err := g.Store.ActiveSuggestionTitleExists(ctx, sg.Title)
		if err != nil {
			return created, err
		}
		if exists {
			logger.Debug("skipping duplicate intel suggestion", "title", sg.Title)
			continue
		}
		if _, err := g.Store.CreateSuggestion(ctx, sg); err != nil {
			return created, fmt.Errorf("create suggestion for %s intel: %w", cat, err)
		}
		if err := g.Store.MarkIntelRead(ctx, sg.SourceIntelIDs); err != nil {
			return created, fmt.Errorf("mark intel read: %w", err)
		}
		created++
	}
	return created, nil
}

func suggestionFromIntel(category string, group []models.IntelItem) models.Suggestion {
	ids := make([]int64, 0, len(group))
	titles := make([]string, 0, len(group))
	maxScore := 0
	for _, it := range group {
		ids = append(ids, it.IntelID)
		titles = append(titles, it.Title)
		if it.RelevanceScore > maxScore {
			maxScore = it.RelevanceScore
		}
	}
	impact := models.LevelMedium
	priority := 3
	if maxScore >= 80 {
		impact = models.LevelHigh
		priority = 2
	}
	return models.Suggestion{
		Title:          fmt.Sprintf("Act on %d new %s signals", len(group), category),
		Why:            "New intel: " + strings.Join(titles, "; "),
		Effort:         models.LevelMedium,
		Impact:         impact,
		ImpactScore:    maxScore,
		Category:       category,
		SourceIntelIDs: ids,
		Priority:       priority,
	}
}

// fromStanding replays the embedded standing list.
func (g *Generator) fromStanding(ctx context.Context, logger *slog.Logger) (int, error) {
	var file standingFile
	if err := yaml.Unmarshal(standingYAML, &file); err != nil {
		return 0, fmt.Errorf("parse standing list: %w", err)
	}
	var created int
	for _, e := range file.Suggestions {
		if e.Title == "" {
			continue
		}
		exists, err := g.Store.ActiveSuggestionTitleExists(ctx, e.Title)
		if err != nil {
			return created, err
		}
		if exists {
			logger.Debug("skipping duplicate standing suggestion", "title", e.Title)
			continue
		}
		sg := models.Suggestion{
			Title:       e.Title,
			Why:         e.Why,
			Effort:      e.Effort,
			Impact:      e.Impact,
			ImpactScore: e.ImpactScore,
			Category:    e.Category,
			Priority:    e.Priority,
		}
		if sg.Effort == "" {
			sg.Effort = models.LevelMedium
		}
		if sg.Impact == "" {
			sg.Impact = models.LevelMedium
		}
		if _, err := g.Store.CreateSuggestion(ctx, sg); err != nil {
			return created, fmt.Errorf("create standing suggestion %q: %w", e.Title, err)
		}
		created++
	}
	return created, nil
}
