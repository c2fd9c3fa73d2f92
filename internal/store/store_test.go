package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMigrationsAndSeedDefaults(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	agents, err := st.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("seeded agents: got %d, want 3", len(agents))
	}
	var orchestrators int
	for _, a := range agents {
		if a.IsOrchestrator {
			orchestrators++
			if !a.Enabled {
				t.Errorf("orchestrator %s seeded disabled", a.AgentID)
			}
		}
	}
	if orchestrators != 1 {
		t.Fatalf("orchestrators: got %d, want 1", orchestrators)
	}

	// Idempotent: a second seed must not duplicate profiles.
	if err := st.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults again: %v", err)
	}
	agents, _ = st.ListAgents(ctx)
	if len(agents) != 3 {
		t.Fatalf("agents after reseed: got %d, want 3", len(agents))
	}

	if v, ok, _ := st.GetSetting(ctx, SettingRefreshIntervalMin); !ok || v != "60" {
		t.Errorf("refresh interval setting: got %q ok=%v", v, ok)
	}
}

func TestAgentRegistryGuards(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateAgent(ctx, "atlas", "Atlas", nil, true); err != nil {
		t.Fatalf("CreateAgent orchestrator: %v", err)
	}
	if err := st.CreateAgent(ctx, "seo", "SEO", []string{"seo", "gsc"}, false); err != nil {
		t.Fatalf("CreateAgent seo: %v", err)
	}

	// Single orchestrator invariant.
	if err := st.CreateAgent(ctx, "atlas2", "Atlas II", nil, true); err == nil {
		t.Fatal("expected second orchestrator create to fail")
	}

	// Orchestrator can never be disabled, regardless of prior state.
	var protected *ProtectedAgentError
	if err := st.SetAgentEnabled(ctx, "atlas", false); !errors.As(err, &protected) {
		t.Fatalf("disable orchestrator: got %v, want ProtectedAgentError", err)
	}
	if err := st.SetAgentEnabled(ctx, "atlas", true); err != nil {
		t.Fatalf("enable orchestrator: %v", err)
	}
	if err := st.SetAgentEnabled(ctx, "atlas", false); !errors.As(err, &protected) {
		t.Fatalf("disable orchestrator after enable: got %v, want ProtectedAgentError", err)
	}

	// Specialists toggle freely.
	if err := st.SetAgentEnabled(ctx, "seo", false); err != nil {
		t.Fatalf("disable seo: %v", err)
	}
	enabled, err := st.ListEnabledAgents(ctx)
	if err != nil {
		t.Fatalf("ListEnabledAgents: %v", err)
	}
	if len(enabled) != 1 || enabled[0].AgentID != "atlas" {
		t.Fatalf("enabled agents: %+v", enabled)
	}

	if err := st.SetAgentEnabled(ctx, "ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("enable unknown agent: got %v, want ErrNotFound", err)
	}

	if err := st.UpdateAgentRules(ctx, "seo", []string{"search console"}); err != nil {
		t.Fatalf("UpdateAgentRules: %v", err)
	}
	a, err := st.GetAgent(ctx, "seo")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if len(a.HandoffRules) != 1 || a.HandoffRules[0] != "search console" {
		t.Fatalf("rules after update: %v", a.HandoffRules)
	}

	// Deleting a referenced agent is allowed; lookups then report not found.
	if err := st.DeleteAgent(ctx, "seo"); err != nil {
		t.Fatalf("DeleteAgent: %v", err)
	}
	if _, err := st.GetAgent(ctx, "seo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetAgent after delete: got %v, want ErrNotFound", err)
	}
}

func TestTaskStatusLifecycle(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.CreateTask(ctx, "Write launch notes", nil, nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task, err := st.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != models.TaskPending || task.CompletedAt != nil {
		t.Fatalf("new task: %+v", task)
	}

	if _, err := st.CreateTask(ctx, "   ", nil, nil); err == nil {
		t.Fatal("expected empty title to be rejected")
	}

	if err := st.UpdateTaskStatus(ctx, id, models.TaskActive); err != nil {
		t.Fatalf("to active: %v", err)
	}
	if err := st.UpdateTaskProgress(ctx, id, "drafting outline"); err != nil {
		t.Fatalf("UpdateTaskProgress: %v", err)
	}
	if err := st.UpdateTaskStatus(ctx, id, models.TaskCompleted); err != nil {
		t.Fatalf("to completed: %v", err)
	}
	task, _ = st.GetTask(ctx, id)
	if task.CompletedAt == nil {
		t.Fatal("completed_at not set on completion")
	}
	if task.WhatDoing != "drafting outline" {
		t.Errorf("what_doing: %q", task.WhatDoing)
	}

	// Completed is terminal.
	if err := st.UpdateTaskStatus(ctx, id, models.TaskPending); err == nil {
		t.Fatal("expected completed task to refuse status change")
	}

	agent := "dev"
	if err := st.AssignTask(ctx, id, &agent); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if err := st.UpdateTaskStatus(ctx, 9999, models.TaskActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown task: got %v, want ErrNotFound", err)
	}
}

func TestIntelAppendAndRead(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id1, err := st.AppendIntel(ctx, models.IntelItem{Category: "seo", Title: "Competitor shipped sitemap tool", RelevanceScore: 80})
	if err != nil {
		t.Fatalf("AppendIntel: %v", err)
	}
	// Duplicates are acceptable noise at ingestion time.
	id2, err := st.AppendIntel(ctx, models.IntelItem{Category: "seo", Title: "Competitor shipped sitemap tool", RelevanceScore: 250})
	if err != nil {
		t.Fatalf("AppendIntel dup: %v", err)
	}
	if _, err := st.AppendIntel(ctx, models.IntelItem{Title: "no category"}); err == nil {
		t.Fatal("expected missing category to be rejected")
	}

	items, err := st.ListIntel(ctx, "seo", true, 0)
	if err != nil {
		t.Fatalf("ListIntel: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("unread seo items: got %d, want 2", len(items))
	}
	for _, it := range items {
		if it.IntelID == id2 && it.RelevanceScore != 100 {
			t.Errorf("relevance not clamped: %d", it.RelevanceScore)
		}
	}

	above, err := st.ListUnreadIntelAbove(ctx, 60)
	if err != nil {
		t.Fatalf("ListUnreadIntelAbove: %v", err)
	}
	if len(above) != 2 {
		t.Fatalf("relevant unread: got %d, want 2", len(above))
	}

	if err := st.MarkIntelRead(ctx, []int64{id1}); err != nil {
		t.Fatalf("MarkIntelRead: %v", err)
	}
	items, _ = st.ListIntel(ctx, "seo", true, 0)
	if len(items) != 1 || items[0].IntelID != id2 {
		t.Fatalf("unread after mark: %+v", items)
	}

	n, err := st.ArchiveIntelBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ArchiveIntelBefore: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived: got %d, want 2", n)
	}
}

func TestSuggestionTransitionTable(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	newSuggestion := func(title string) int64 {
		t.Helper()
		id, err := st.CreateSuggestion(ctx, models.Suggestion{
			Title: title, Why: "because", Effort: models.LevelLow, Impact: models.LevelHigh,
		})
		if err != nil {
			t.Fatalf("CreateSuggestion: %v", err)
		}
		return id
	}

	// Walk every (from, to) pair and compare against the allowed-transition table.
	statuses := []string{
		models.SuggestionPending, models.SuggestionApproved, models.SuggestionDismissed,
		models.SuggestionQueued, models.SuggestionInProgress, models.SuggestionCompleted,
	}
	// Paths that drive a fresh pending suggestion into each starting state.
	paths := map[string][]string{
		models.SuggestionPending:    {},
		models.SuggestionApproved:   {models.SuggestionApproved},
		models.SuggestionDismissed:  {models.SuggestionDismissed},
		models.SuggestionQueued:     {models.SuggestionApproved, models.SuggestionQueued},
		models.SuggestionInProgress: {models.SuggestionApproved, models.SuggestionQueued, models.SuggestionInProgress},
		models.SuggestionCompleted:  {models.SuggestionApproved, models.SuggestionQueued, models.SuggestionInProgress, models.SuggestionCompleted},
	}
	for _, from := range statuses {
		for _, to := range statuses {
			id := newSuggestion("walk " + from + " to " + to)
			for _, step := range paths[from] {
				if _, err := st.TransitionSuggestion(ctx, id, step); err != nil {
					t.Fatalf("setup %s->%s via %s: %v", from, to, step, err)
				}
			}
			_, err := st.TransitionSuggestion(ctx, id, to)
			if models.CanTransition(from, to) {
				if err != nil {
					t.Errorf("transition %s->%s: unexpected error %v", from, to, err)
				}
			} else {
				var illegal *IllegalTransitionError
				if !errors.As(err, &illegal) {
					t.Errorf("transition %s->%s: got %v, want IllegalTransitionError", from, to, err)
				}
				// A failed transition must not mutate the row.
				cur, gerr := st.GetSuggestion(ctx, id)
				if gerr != nil {
					t.Fatalf("GetSuggestion: %v", gerr)
				}
				if cur.Status != from {
					t.Errorf("failed transition %s->%s mutated status to %s", from, to, cur.Status)
				}
			}
		}
	}
}

func TestSuggestionFieldEditsDoNotTouchActionedAt(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.CreateSuggestion(ctx, models.Suggestion{
		Title: "Refresh sitemap", Why: "stale", Effort: models.LevelLow, Impact: models.LevelMedium,
	})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}
	before, _ := st.GetSuggestion(ctx, id)

	notes := "check robots.txt too"
	priority := 1
	if err := st.UpdateSuggestionFields(ctx, id, &notes, &priority); err != nil {
		t.Fatalf("UpdateSuggestionFields: %v", err)
	}
	after, _ := st.GetSuggestion(ctx, id)
	if !after.ActionedAt.Equal(before.ActionedAt) {
		t.Errorf("field edit changed actioned_at: %v -> %v", before.ActionedAt, after.ActionedAt)
	}
	if after.Notes != notes || after.Priority != 1 {
		t.Errorf("fields not updated: %+v", after)
	}

	bad := 9
	if err := st.UpdateSuggestionFields(ctx, id, nil, &bad); err == nil {
		t.Fatal("expected out-of-range priority to be rejected")
	}
}

func TestActiveSuggestionTitleExists(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.CreateSuggestion(ctx, models.Suggestion{
		Title: "Weekly content audit", Why: "standing", Effort: models.LevelMedium, Impact: models.LevelMedium,
	})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}
	if ok, _ := st.ActiveSuggestionTitleExists(ctx, "Weekly content audit"); !ok {
		t.Fatal("expected active title to exist")
	}
	if ok, _ := st.ActiveSuggestionTitleExists(ctx, "Something else"); ok {
		t.Fatal("unexpected title match")
	}

	// Dismissed suggestions do not block re-creation.
	if _, err := st.TransitionSuggestion(ctx, id, models.SuggestionDismissed); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if ok, _ := st.ActiveSuggestionTitleExists(ctx, "Weekly content audit"); ok {
		t.Fatal("dismissed title should not count as active")
	}
}

func TestOvernightRunSingleton(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	run, err := st.InsertRunningRun(ctx)
	if err != nil {
		t.Fatalf("InsertRunningRun: %v", err)
	}
	if _, err := st.InsertRunningRun(ctx); !errors.Is(err, ErrRunAlreadyActive) {
		t.Fatalf("second running run: got %v, want ErrRunAlreadyActive", err)
	}

	active, err := st.ActiveRun(ctx)
	if err != nil {
		t.Fatalf("ActiveRun: %v", err)
	}
	if active == nil || active.RunID != run.RunID {
		t.Fatalf("active run: %+v", active)
	}

	if err := st.FinishRun(ctx, run.RunID, models.RunCompleted, 4, 3, "good night"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if active, _ = st.ActiveRun(ctx); active != nil {
		t.Fatalf("active run after finish: %+v", active)
	}
	done, _ := st.GetRun(ctx, run.RunID)
	if done.Status != models.RunCompleted || done.TasksStarted != 4 || done.TasksCompleted != 3 || done.CompletedAt == nil {
		t.Fatalf("finished run: %+v", done)
	}

	// Finishing twice reports not found (the running row is gone).
	if err := st.FinishRun(ctx, run.RunID, models.RunStopped, 0, 0, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double finish: got %v, want ErrNotFound", err)
	}

	// A new run may start once the previous one finished.
	if _, err := st.InsertRunningRun(ctx); err != nil {
		t.Fatalf("new run after finish: %v", err)
	}
}

func TestNextQueuedSuggestionOrdering(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if sg, err := st.NextQueuedSuggestion(ctx); err != nil || sg != nil {
		t.Fatalf("empty queue: got %+v, %v", sg, err)
	}

	mk := func(title string, priority int) int64 {
		t.Helper()
		id, err := st.CreateSuggestion(ctx, models.Suggestion{
			Title: title, Why: "w", Effort: models.LevelLow, Impact: models.LevelLow, Priority: priority,
		})
		if err != nil {
			t.Fatal(err)
		}
		for _, step := range []string{models.SuggestionApproved, models.SuggestionQueued} {
			if _, err := st.TransitionSuggestion(ctx, id, step); err != nil {
				t.Fatal(err)
			}
		}
		return id
	}
	mk("low urgency", 4)
	urgent := mk("urgent", 1)

	next, err := st.NextQueuedSuggestion(ctx)
	if err != nil {
		t.Fatalf("NextQueuedSuggestion: %v", err)
	}
	if next == nil || next.SuggestionID != urgent {
		t.Fatalf("next queued: %+v, want id %d", next, urgent)
	}
}

func TestClaimRefreshSlot(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	claimed, _, err := st.ClaimRefreshSlot(ctx, SettingLastIntelRefresh, now, time.Hour)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	// Within the interval: not claimed, and the last refresh time is reported.
	claimed, last, err := st.ClaimRefreshSlot(ctx, SettingLastIntelRefresh, now.Add(10*time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("claim within interval should be refused")
	}
	if !last.Equal(now) {
		t.Errorf("last refresh: got %v, want %v", last, now)
	}

	// After the interval: claimed again.
	claimed, _, err = st.ClaimRefreshSlot(ctx, SettingLastIntelRefresh, now.Add(61*time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("third claim: %v", err)
	}
	if !claimed {
		t.Fatal("claim after interval should succeed")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetSetting(ctx, SettingOvernightMode); err != nil || ok {
		t.Fatalf("unset key: ok=%v err=%v", ok, err)
	}
	if err := st.SetSetting(ctx, SettingOvernightMode, "true"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := st.SetSetting(ctx, SettingOvernightMode, "false"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	v, ok, err := st.GetSetting(ctx, SettingOvernightMode)
	if err != nil || !ok || v != "false" {
		t.Fatalf("GetSetting: %q ok=%v err=%v", v, ok, err)
	}
}
