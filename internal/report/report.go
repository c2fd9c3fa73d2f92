// Package report persists work output and closes the loop on the suggestion
// that produced it.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// Sink writes reports and applies their side effects.
type Sink struct {
	Store   store.Store
	Tracker Tracker
	Logger  *slog.Logger
}

func (s *Sink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Create stores a report. When it belongs to a suggestion, that suggestion is
// marked completed and stamped with the report id; a queued suggestion passes
// through in_progress on the way. The completion runs before the report row is
// written, so a suggestion that cannot legally complete leaves no report
// behind. Tracker notification failures are logged, never returned.
func (s *Sink) Create(ctx context.Context, r models.Report) (*models.Report, error) {
	if r.SuggestionID != nil {
		if err := s.completeSuggestion(ctx, *r.SuggestionID); err != nil {
			return nil, err
		}
	}
	id, err := s.Store.CreateReport(ctx, r)
	if err != nil {
		return nil, err
	}
	if r.SuggestionID != nil {
		if err := s.Store.SetSuggestionReport(ctx, *r.SuggestionID, id); err != nil {
			return nil, err
		}
	}
	out, err := s.Store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Tracker != nil {
		if err := s.Tracker.Notify(ctx, fmt.Sprintf("Report ready: %s (%s)", out.Title, out.Type)); err != nil {
			s.logger().Warn("report notification failed", "report_id", id, "error", err)
		}
	}
	return out, nil
}

func (s *Sink) completeSuggestion(ctx context.Context, suggestionID int64) error {
	sg, err := s.Store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return err
	}
	if sg.Status == models.SuggestionQueued {
		if sg, err = s.Store.TransitionSuggestion(ctx, suggestionID, models.SuggestionInProgress); err != nil {
			return err
		}
	}
	if sg.Status != models.SuggestionCompleted {
		if _, err = s.Store.TransitionSuggestion(ctx, suggestionID, models.SuggestionCompleted); err != nil {
			var illegal *store.IllegalTransitionError
			if errors.As(err, &illegal) {
				return fmt.Errorf("suggestion %d cannot be completed from %s: %w", suggestionID, illegal.From, err)
			}
			return err
		}
	}
	return nil
}

// FileIssue creates a tracker issue for a suggestion and stamps the issue
// fields on it. A tracker failure is absorbed; the suggestion is untouched.
func (s *Sink) FileIssue(ctx context.Context, suggestionID int64) (*models.Suggestion, error) {
	sg, err := s.Store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if s.Tracker == nil {
		return sg, nil
	}
	issue, err := s.Tracker.CreateIssue(ctx, sg.Title, sg.Why)
	if err != nil {
		s.logger().Warn("issue creation failed", "suggestion_id", suggestionID, "error", err)
		return sg, nil
	}
	if err := s.Store.SetSuggestionIssue(ctx, suggestionID, issue.ID, issue.Identifier, issue.URL); err != nil {
		return nil, err
	}
	return s.Store.GetSuggestion(ctx, suggestionID)
}
