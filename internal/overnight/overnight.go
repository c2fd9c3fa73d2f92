// Package overnight manages the autonomous overnight work session: one active
// run at a time, draining the queued suggestion backlog inside the night window.
package overnight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/intel"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/suggest"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// ErrNoQueuedWork means a run was requested with an empty queue.
var ErrNoQueuedWork = errors.New("no queued suggestions to work on")

// RefreshMinInterval is the floor between unforced intel refreshes.
const RefreshMinInterval = 60 * time.Minute

// Orchestrator coordinates overnight runs and intel refreshes over the store.
type Orchestrator struct {
	Store     store.Store
	Collector *intel.Collector
	Generator *suggest.Generator
	Logger    *slog.Logger
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Start begins an overnight run. It refuses to start with nothing queued and
// relies on the store to reject a second concurrent run.
func (o *Orchestrator) Start(ctx context.Context) (*models.OvernightRun, error) {
	counts, err := o.Store.CountSuggestionsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	if counts[models.SuggestionQueued] == 0 {
		return nil, ErrNoQueuedWork
	}
	run, err := o.Store.InsertRunningRun(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.Store.SetSetting(ctx, store.SettingOvernightMode, "true"); err != nil {
		return nil, err
	}
	if err := o.Store.SetSetting(ctx, store.SettingActiveRunID, strconv.FormatInt(run.RunID, 10)); err != nil {
		return nil, err
	}
	o.logger().Info("overnight run started", "run_id", run.RunID, "queued", counts[models.SuggestionQueued])
	return run, nil
}

// Stop ends a run with status stopped. runID 0 resolves the active run. The
// settings cleanup always happens, so a stop with no active run is a safe no-op
// that still clears a stale overnight_mode flag.
func (o *Orchestrator) Stop(ctx context.Context, runID int64) (*models.OvernightRun, error) {
	return o.finish(ctx, runID, models.RunStopped, 0, 0, "")
}

// Complete ends a run with status completed plus its counters and summary.
func (o *Orchestrator) Complete(ctx context.Context, runID int64, tasksStarted, tasksCompleted int, summary string) (*models.OvernightRun, error) {
	return o.finish(ctx, runID, models.RunCompleted, tasksStarted, tasksCompleted, summary)
}

func (o *Orchestrator) finish(ctx context.Context, runID int64, status string, started, completed int, summary string) (*models.OvernightRun, error) {
	defer func() {
		if err := o.Store.SetSetting(ctx, store.SettingOvernightMode, "false"); err != nil {
			o.logger().Warn("clearing overnight_mode failed", "error", err)
		}
		if err := o.Store.SetSetting(ctx, store.SettingActiveRunID, ""); err != nil {
			o.logger().Warn("clearing active_run_id failed", "error", err)
		}
	}()

	if runID == 0 {
		active, err := o.Store.ActiveRun(ctx)
		if err != nil {
			return nil, err
		}
		if active == nil {
			o.logger().Info("no active overnight run, settings reset")
			return nil, nil
		}
		runID = active.RunID
	}
	if err := o.Store.FinishRun(ctx, runID, status, started, completed, summary); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// already finished or never existed; the cleanup above still runs
			o.logger().Info("overnight run already finished", "run_id", runID)
			return o.runIfExists(ctx, runID), nil
		}
		return nil, err
	}
	o.logger().Info("overnight run finished", "run_id", runID, "status", status)
	return o.Store.GetRun(ctx, runID)
}

func (o *Orchestrator) runIfExists(ctx context.Context, runID int64) *models.OvernightRun {
	run, err := o.Store.GetRun(ctx, runID)
	if err != nil {
		return nil
	}
	return run
}

// Status reports the active run, overnight mode flag and queue depth.
type Status struct {
	OvernightMode bool                 `json:"overnight_mode"`
	ActiveRun     *models.OvernightRun `json:"active_run,omitempty"`
	QueuedCount   int64                `json:"queued_count"`
}

func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	mode, _, err := o.Store.GetSetting(ctx, store.SettingOvernightMode)
	if err != nil {
		return nil, err
	}
	active, err := o.Store.ActiveRun(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := o.Store.CountSuggestionsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		OvernightMode: mode == "true",
		ActiveRun:     active,
		QueuedCount:   counts[models.SuggestionQueued],
	}, nil
}

// refreshInterval returns the configured minimum gap between unforced
// refreshes, falling back to RefreshMinInterval.
func (o *Orchestrator) refreshInterval(ctx context.Context) time.Duration {
	raw, ok, err := o.Store.GetSetting(ctx, store.SettingRefreshIntervalMin)
	if err != nil || !ok {
		return RefreshMinInterval
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return RefreshMinInterval
	}
	return time.Duration(minutes) * time.Minute
}

// RefreshIntel collects from all sources and generates suggestions, at most
// once per the configured interval unless forced. The slot claim is a single
// conditional upsert, so concurrent triggers cannot double-run.
func (o *Orchestrator) RefreshIntel(ctx context.Context, force bool) (*models.RefreshResult, error) {
	now := time.Now().UTC()
	interval := o.refreshInterval(ctx)
	if !force {
		claimed, last, err := o.Store.ClaimRefreshSlot(ctx, store.SettingLastIntelRefresh, now, interval)
		if err != nil {
			return nil, err
		}
		if !claimed {
			retry := last.Add(interval).Sub(now)
			if retry < 0 {
				retry = 0
			}
			return &models.RefreshResult{Skipped: true, RetryAfter: retry}, nil
		}
	} else {
		if err := o.Store.SetSetting(ctx, store.SettingLastIntelRefresh, strconv.FormatInt(now.Unix(), 10)); err != nil {
			return nil, err
		}
	}

	res := &models.RefreshResult{}
	if o.Collector != nil {
		n, err := o.Collector.Collect(ctx)
		if err != nil {
			return res, fmt.Errorf("collect intel: %w", err)
		}
		res.Collected = n
	}
	if o.Generator != nil {
		n, err := o.Generator.Generate(ctx)
		if err != nil {
			return res, fmt.Errorf("generate suggestions: %w", err)
		}
		res.Generated = n
	}
	o.logger().Info("intel refreshed", "collected", res.Collected, "generated", res.Generated, "forced", force)
	return res, nil
}

// PickNextQueued moves the highest-priority queued suggestion to in_progress
// and returns it, or nil when the queue is empty.
func (o *Orchestrator) PickNextQueued(ctx context.Context) (*models.Suggestion, error) {
	next, err := o.Store.NextQueuedSuggestion(ctx)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}
	sg, err := o.Store.TransitionSuggestion(ctx, next.SuggestionID, models.SuggestionInProgress)
	if err != nil {
		var illegal *store.IllegalTransitionError
		if errors.As(err, &illegal) {
			// someone else moved it first; treat as empty pick
			return nil, nil
		}
		return nil, err
	}
	o.logger().Info("picked queued suggestion", "suggestion_id", sg.SuggestionID, "title", sg.Title)
	return sg, nil
}
