package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// These tests need a real database. Set DATABASE_URL to run them, e.g.
//   DATABASE_URL=postgres://localhost/superclaw_test go test ./internal/store/postgres/
func openTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	st, err := Open(dsn)
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	pg := st.(*Store)
	for _, table := range []string{"reports", "overnight_runs", "suggestions", "intel_items", "tasks", "agents", "settings"} {
		if _, err := pg.Pool.Exec(context.Background(), "DELETE FROM "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return st
}

func TestPostgresAgentLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateAgent(ctx, "atlas", "Atlas", nil, true); err != nil {
		t.Fatalf("create orchestrator: %v", err)
	}
	if err := st.CreateAgent(ctx, "second", "Second", nil, true); err == nil {
		t.Fatal("expected second orchestrator to be rejected")
	}
	if err := st.CreateAgent(ctx, "seo", "SEO", []string{"seo", "gsc"}, false); err != nil {
		t.Fatalf("create agent: %v", err)
	}

	var protected *store.ProtectedAgentError
	if err := st.SetAgentEnabled(ctx, "atlas", false); !errors.As(err, &protected) {
		t.Fatalf("disabling orchestrator: got %v, want ProtectedAgentError", err)
	}
	if err := st.SetAgentEnabled(ctx, "seo", false); err != nil {
		t.Fatalf("disable agent: %v", err)
	}
	enabled, err := st.ListEnabledAgents(ctx)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].AgentID != "atlas" {
		t.Fatalf("enabled agents = %+v, want only atlas", enabled)
	}
	if _, err := st.GetAgent(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing agent: got %v, want ErrNotFound", err)
	}
}

func TestPostgresSuggestionTransitions(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.CreateSuggestion(ctx, models.Suggestion{
		Title:  "Fix crawl budget",
		Why:    "Search console reports wasted crawls",
		Effort: models.LevelLow,
		Impact: models.LevelHigh,
	})
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}

	sg, err := st.TransitionSuggestion(ctx, id, models.SuggestionApproved)
	if err != nil {
		t.Fatalf("pending->approved: %v", err)
	}
	if sg.Status != models.SuggestionApproved {
		t.Fatalf("status = %q, want approved", sg.Status)
	}

	var illegal *store.IllegalTransitionError
	if _, err := st.TransitionSuggestion(ctx, id, models.SuggestionCompleted); !errors.As(err, &illegal) {
		t.Fatalf("approved->completed: got %v, want IllegalTransitionError", err)
	}
	cur, err := st.GetSuggestion(ctx, id)
	if err != nil {
		t.Fatalf("get suggestion: %v", err)
	}
	if cur.Status != models.SuggestionApproved {
		t.Fatalf("failed transition mutated status to %q", cur.Status)
	}
}

func TestPostgresRunSingletonAndRefreshSlot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	run, err := st.InsertRunningRun(ctx)
	if err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if _, err := st.InsertRunningRun(ctx); !errors.Is(err, store.ErrRunAlreadyActive) {
		t.Fatalf("second run: got %v, want ErrRunAlreadyActive", err)
	}
	if err := st.FinishRun(ctx, run.RunID, models.RunCompleted, 2, 1, "done"); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if _, err := st.InsertRunningRun(ctx); err != nil {
		t.Fatalf("run after finish: %v", err)
	}

	now := time.Now().UTC()
	claimed, _, err := st.ClaimRefreshSlot(ctx, store.SettingLastIntelRefresh, now, time.Hour)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	claimed, last, err := st.ClaimRefreshSlot(ctx, store.SettingLastIntelRefresh, now.Add(time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("claim inside interval should be refused")
	}
	if last.Unix() != now.Unix() {
		t.Fatalf("last refresh = %v, want %v", last, now)
	}
}
