// Package porter routes free-text work descriptions to the best matching agent.
package porter

import (
	"sort"
	"strings"

	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// Scorer rates how well a text matches one agent's handoff rules.
// It returns the total score and the rules that matched.
type Scorer interface {
	Score(text string, rules []string) (int, []string)
}

// SubstringScorer is the default scorer: each rule that appears as a literal
// substring of the lowercased text contributes len(rule) points, so longer,
// more specific rules outweigh short generic ones.
type SubstringScorer struct{}

func (SubstringScorer) Score(text string, rules []string) (int, []string) {
	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	var score int
	var matched []string
	for _, rule := range rules {
		rule = strings.ToLower(strings.TrimSpace(rule))
		if rule == "" {
			continue
		}
		if strings.Contains(text, rule) {
			score += len(rule)
			matched = append(matched, rule)
		}
	}
	return score, matched
}

// Router picks an agent for a piece of text. Fallback receives everything no
// specialist scores on, typically the orchestrator profile.
type Router struct {
	Fallback string
	Scorer   Scorer
}

func New(fallback string) *Router {
	return &Router{Fallback: fallback, Scorer: SubstringScorer{}}
}

// Route scores text against every candidate's rules and returns the winner.
// Agents without rules never win on score. Ties go to the lexicographically
// smallest agent id so routing stays deterministic across restarts.
func (r *Router) Route(text string, agents []models.AgentProfile) models.RouteDecision {
	scorer := r.Scorer
	if scorer == nil {
		scorer = SubstringScorer{}
	}

	sorted := make([]models.AgentProfile, len(agents))
	copy(sorted, agents)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AgentID < sorted[j].AgentID })

	best := models.RouteDecision{AgentID: r.Fallback}
	for _, a := range sorted {
		if len(a.HandoffRules) == 0 {
			continue
		}
		score, matched := scorer.Score(text, a.HandoffRules)
		if score > best.Score {
			best = models.RouteDecision{AgentID: a.AgentID, Score: score, MatchedRules: matched}
		}
	}
	return best
}
