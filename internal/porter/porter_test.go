package porter

import (
	"reflect"
	"testing"

	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

func testAgents() []models.AgentProfile {
	return []models.AgentProfile{
		{AgentID: "atlas", Name: "Atlas", Enabled: true, IsOrchestrator: true},
		{AgentID: "seo", Name: "SEO", Enabled: true, HandoffRules: []string{"seo", "gsc", "search console", "keyword", "ranking"}},
		{AgentID: "dev", Name: "Dev", Enabled: true, HandoffRules: []string{"build", "deploy", "bug", "refactor", "test"}},
	}
}

func TestRouteMatchesStrongestAgent(t *testing.T) {
	r := New("atlas")
	d := r.Route("check the search console for keyword rankings", testAgents())
	if d.AgentID != "seo" {
		t.Fatalf("routed to %q, want seo", d.AgentID)
	}
	// "search console" (14) + "keyword" (7) + "ranking" (7) = 28
	if d.Score != 28 {
		t.Fatalf("score = %d, want 28", d.Score)
	}
	want := []string{"keyword", "ranking", "search console"}
	got := append([]string(nil), d.MatchedRules...)
	if len(got) != 3 {
		t.Fatalf("matched rules = %v, want 3 rules", got)
	}
	found := map[string]bool{}
	for _, m := range got {
		found[m] = true
	}
	for _, w := range want {
		if !found[w] {
			t.Fatalf("matched rules %v missing %q", got, w)
		}
	}
}

func TestRouteFallbacks(t *testing.T) {
	r := New("atlas")
	cases := []struct {
		name string
		text string
	}{
		{"no rule matches", "write a poem about the ocean"},
		{"empty text", ""},
		{"whitespace text", "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := r.Route(tc.text, testAgents())
			if d.AgentID != "atlas" {
				t.Fatalf("routed to %q, want fallback atlas", d.AgentID)
			}
			if d.Score != 0 {
				t.Fatalf("fallback score = %d, want 0", d.Score)
			}
			if len(d.MatchedRules) != 0 {
				t.Fatalf("fallback matched rules = %v, want none", d.MatchedRules)
			}
		})
	}
}

func TestRouteAgentsWithoutRulesNeverWin(t *testing.T) {
	r := New("atlas")
	agents := []models.AgentProfile{
		{AgentID: "atlas", IsOrchestrator: true},
		{AgentID: "blank", HandoffRules: []string{"", "   "}},
	}
	d := r.Route("anything at all", agents)
	if d.AgentID != "atlas" {
		t.Fatalf("routed to %q, want fallback atlas", d.AgentID)
	}
}

func TestRouteTieBreaksByAgentID(t *testing.T) {
	r := New("atlas")
	agents := []models.AgentProfile{
		{AgentID: "zeta", HandoffRules: []string{"deploy"}},
		{AgentID: "alpha", HandoffRules: []string{"deploy"}},
	}
	d := r.Route("deploy the staging site", agents)
	if d.AgentID != "alpha" {
		t.Fatalf("tie routed to %q, want alpha", d.AgentID)
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	r := New("atlas")
	agents := testAgents()
	first := r.Route("fix the login bug then deploy", agents)
	for i := 0; i < 10; i++ {
		if got := r.Route("fix the login bug then deploy", agents); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d returned %+v, first run %+v", i, got, first)
		}
	}
	if first.AgentID != "dev" {
		t.Fatalf("routed to %q, want dev", first.AgentID)
	}
}

func TestSubstringScorerCaseInsensitive(t *testing.T) {
	var s SubstringScorer
	score, matched := s.Score("URGENT: GSC shows a drop in SEO traffic", []string{"seo", "gsc"})
	if score != 6 {
		t.Fatalf("score = %d, want 6", score)
	}
	if len(matched) != 2 {
		t.Fatalf("matched = %v, want both rules", matched)
	}
}
