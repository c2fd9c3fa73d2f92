package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/httpapi"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

func TestStartForegroundRequiresHome(t *testing.T) {
	t.Parallel()
	err := StartForeground(context.Background(), StartOptions{})
	if err == nil {
		t.Fatal("expected error for empty home")
	}
}

func TestStatusWithoutPidFile(t *testing.T) {
	t.Parallel()
	st, err := Status(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running {
		t.Fatal("reported running with no pid file")
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	t.Parallel()
	stopped, err := Stop(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped {
		t.Fatal("Stop reported success with no daemon")
	}
}

func TestLockIsExclusive(t *testing.T) {
	t.Parallel()
	path := lockPath(t.TempDir())

	first, err := acquireLock(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := acquireLock(path); err == nil {
		t.Fatal("second acquire succeeded while lock held")
	}

	first.release()
	third, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	third.release()
}

func TestWithinWindow(t *testing.T) {
	t.Parallel()
	at := func(hhmm string) time.Time {
		parsed, err := time.Parse("15:04", hhmm)
		if err != nil {
			t.Fatalf("bad clock %q", hhmm)
		}
		return time.Date(2026, 3, 10, parsed.Hour(), parsed.Minute(), 0, 0, time.Local)
	}

	cases := []struct {
		now, start, end string
		want            bool
	}{
		{"23:00", "22:00", "06:00", true},
		{"03:30", "22:00", "06:00", true},
		{"06:00", "22:00", "06:00", false},
		{"12:00", "22:00", "06:00", false},
		{"22:00", "22:00", "06:00", true},
		{"10:00", "09:00", "17:00", true},
		{"17:00", "09:00", "17:00", false},
		{"08:59", "09:00", "17:00", false},
		{"04:00", "12:00", "12:00", true},  // equal bounds: always open
		{"04:00", "bogus", "06:00", true},  // unparsable start falls open
		{"04:00", "22:00", "banana", true}, // unparsable end falls open
	}
	for _, tc := range cases {
		if got := withinWindow(at(tc.now), tc.start, tc.end); got != tc.want {
			t.Errorf("withinWindow(%s, %s, %s) = %v, want %v", tc.now, tc.start, tc.end, got, tc.want)
		}
	}
}

func newSchedulerApp(t *testing.T) (*httpapi.App, int64) {
	t.Helper()
	app, err := httpapi.NewApp(httpapi.ServerOptions{Home: t.TempDir(), Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = app.Store.Close() })
	ctx := context.Background()

	sgID, err := app.Store.CreateSuggestion(ctx, models.Suggestion{
		Title: "Prune unused redirects", Why: "legacy rules", Effort: models.LevelLow, Impact: models.LevelMedium, Priority: 2,
	})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}
	for _, to := range []string{models.SuggestionApproved, models.SuggestionQueued} {
		if _, err := app.Store.TransitionSuggestion(ctx, sgID, to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	if _, err := app.Orchestrator.Start(ctx); err != nil {
		t.Fatalf("start run: %v", err)
	}
	return app, sgID
}

func TestSchedulerTickAdvancesOvernightRun(t *testing.T) {
	t.Parallel()
	app, sgID := newSchedulerApp(t)
	ctx := context.Background()

	events := app.Hub.Subscribe()
	defer app.Hub.Unsubscribe(events)

	// A tick time guaranteed inside the default 22:00-06:00 window.
	schedulerTick(ctx, app, time.Date(2026, 3, 10, 23, 0, 0, 0, time.Local))

	got, err := app.Store.GetSuggestion(ctx, sgID)
	if err != nil {
		t.Fatalf("GetSuggestion: %v", err)
	}
	if got.Status != models.SuggestionInProgress {
		t.Fatalf("status after tick = %q, want in_progress", got.Status)
	}

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no SSE event published by scheduler tick")
	}
}

func TestSchedulerTickOutsideWindowLeavesQueue(t *testing.T) {
	t.Parallel()
	app, sgID := newSchedulerApp(t)
	ctx := context.Background()

	// Midday is outside the default window, so the queue must not drain.
	schedulerTick(ctx, app, time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local))

	got, err := app.Store.GetSuggestion(ctx, sgID)
	if err != nil {
		t.Fatalf("GetSuggestion: %v", err)
	}
	if got.Status != models.SuggestionQueued {
		t.Fatalf("status after out-of-window tick = %q, want queued", got.Status)
	}
}
