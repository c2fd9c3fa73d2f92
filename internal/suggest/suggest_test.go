package suggest

import (
	"context"
	"log/slog"
	"testing"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedIntel(t *testing.T, st store.Store, category string, score int, title string) int64 {
	t.Helper()
	id, err := st.AppendIntel(context.Background(), models.IntelItem{
		Category: category, Title: title, RelevanceScore: score,
	})
	if err != nil {
		t.Fatalf("append intel: %v", err)
	}
	return id
}

func TestGenerateFromIntel(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	g := &Generator{Store: st}

	seedIntel(t, st, "seo", 85, "Core update confirmed")
	seedIntel(t, st, "seo", 70, "GSC adds regex filters")
	seedIntel(t, st, "dev", 65, "New Go release")
	seedIntel(t, st, "dev", 10, "Low value chatter") // below threshold, stays unread

	created, err := g.Generate(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// one per intel category plus the standing list
	if created != 2+3 {
		t.Fatalf("created = %d, want 5", created)
	}

	pending, err := st.ListSuggestions(ctx, models.SuggestionPending, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var seoSg *models.Suggestion
	for i := range pending {
		if pending[i].Category == "seo" && len(pending[i].SourceIntelIDs) > 0 {
			seoSg = &pending[i]
		}
	}
	if seoSg == nil {
		t.Fatal("no intel-derived seo suggestion created")
	}
	if len(seoSg.SourceIntelIDs) != 2 {
		t.Fatalf("seo suggestion sources = %v, want 2 ids", seoSg.SourceIntelIDs)
	}
	if seoSg.Impact != models.LevelHigh || seoSg.ImpactScore != 85 {
		t.Fatalf("seo suggestion impact = %s/%d, want high/85", seoSg.Impact, seoSg.ImpactScore)
	}

	unread, err := st.ListIntel(ctx, "", true, 0)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 1 || unread[0].Title != "Low value chatter" {
		t.Fatalf("unread after generate = %+v, want only the low-score item", unread)
	}
}

func TestGenerateDeduplicatesByTitle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	g := &Generator{Store: st}

	first, err := g.Generate(ctx)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if first == 0 {
		t.Fatal("first generate created nothing")
	}
	second, err := g.Generate(ctx)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if second != 0 {
		t.Fatalf("second generate created %d suggestions, want 0", second)
	}
}

func TestGenerateReplaysAfterDismiss(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	g := &Generator{Store: st}

	if _, err := g.Generate(ctx); err != nil {
		t.Fatalf("generate: %v", err)
	}
	pending, err := st.ListSuggestions(ctx, models.SuggestionPending, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, sg := range pending {
		if _, err := st.TransitionSuggestion(ctx, sg.SuggestionID, models.SuggestionDismissed); err != nil {
			t.Fatalf("dismiss %d: %v", sg.SuggestionID, err)
		}
	}

	// dismissed is terminal, so the standing list replays
	created, err := g.Generate(ctx)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if created != len(pending) {
		t.Fatalf("regenerated %d suggestions, want %d", created, len(pending))
	}
}

func TestGenerateCustomThreshold(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	g := &Generator{Store: st, RelevanceThreshold: 90}

	seedIntel(t, st, "seo", 85, "Below custom threshold")
	created, err := g.fromIntel(ctx, slog.Default())
	if err == nil && created != 0 {
		t.Fatalf("created = %d, want 0 with threshold 90", created)
	}
	if err != nil {
		t.Fatalf("fromIntel: %v", err)
	}
}
