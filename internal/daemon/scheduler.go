package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/httpapi"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/otel"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
)

const defaultTickInterval = 30 * time.Second

// runScheduler drives the unattended work loop. Each tick it tries an intel
// refresh (the store-side slot claim makes redundant ticks cheap no-ops) and,
// while an overnight run is active inside the configured window, moves the
// next queued suggestion to in_progress.
func runScheduler(ctx context.Context, opts StartOptions, app *httpapi.App) {
	interval := defaultTickInterval
	if opts.IntervalSec > 0 {
		interval = time.Duration(opts.IntervalSec * float64(time.Second))
	}
	slog.Info("scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			schedulerTick(ctx, app, time.Now())
		}
	}
}

func schedulerTick(ctx context.Context, app *httpapi.App, now time.Time) {
	refreshIntel(ctx, app)
	advanceOvernight(ctx, app, now)
}

func refreshIntel(ctx context.Context, app *httpapi.App) {
	res, err := app.Orchestrator.RefreshIntel(ctx, false)
	if err != nil {
		otel.RecordRefresh(ctx, "failed")
		slog.Warn("scheduled intel refresh failed", "error", err)
		return
	}
	if res.Skipped {
		otel.RecordRefresh(ctx, "skipped")
		return
	}
	otel.RecordRefresh(ctx, "run")
	if res.Collected > 0 || res.Generated > 0 {
		app.Hub.PublishJSON(map[string]any{
			"type":      "intel_update",
			"collected": res.Collected,
			"generated": res.Generated,
		})
	}
}

func advanceOvernight(ctx context.Context, app *httpapi.App, now time.Time) {
	status, err := app.Orchestrator.Status(ctx)
	if err != nil {
		slog.Warn("overnight status check failed", "error", err)
		return
	}
	if !status.OvernightMode || status.ActiveRun == nil {
		return
	}

	start, end := overnightWindow(ctx, app.Store)
	if !withinWindow(now, start, end) {
		return
	}

	sg, err := app.Orchestrator.PickNextQueued(ctx)
	if err != nil {
		slog.Warn("picking queued suggestion failed", "error", err)
		return
	}
	if sg == nil {
		return
	}
	app.Hub.PublishJSON(map[string]any{
		"type":          "suggestion_update",
		"suggestion_id": sg.SuggestionID,
		"status":        sg.Status,
		"run_id":        status.ActiveRun.RunID,
	})
}

// overnightWindow reads the configured window, defaulting to 22:00-06:00.
func overnightWindow(ctx context.Context, st store.Store) (string, string) {
	start, _, err := st.GetSetting(ctx, store.SettingOvernightWindowStart)
	if err != nil || start == "" {
		start = "22:00"
	}
	end, _, err := st.GetSetting(ctx, store.SettingOvernightWindowEnd)
	if err != nil || end == "" {
		end = "06:00"
	}
	return start, end
}

// withinWindow reports whether now falls inside the [start, end) local-time
// window. A window whose end precedes its start wraps past midnight, which is
// the usual shape for overnight work. Equal bounds mean always open.
func withinWindow(now time.Time, start, end string) bool {
	startMin, ok := parseClock(start)
	if !ok {
		return true
	}
	endMin, ok := parseClock(end)
	if !ok {
		return true
	}
	nowMin := now.Hour()*60 + now.Minute()

	switch {
	case startMin == endMin:
		return true
	case startMin < endMin:
		return nowMin >= startMin && nowMin < endMin
	default:
		return nowMin >= startMin || nowMin < endMin
	}
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
