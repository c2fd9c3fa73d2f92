package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// --- Suggestions ---

const suggestionCols = `suggestion_id, title, why, effort, impact, impact_score, category, source_intel_ids, status, priority, notes, report_id, issue_id, issue_identifier, issue_url, created_at, actioned_at`

func scanSuggestionRow(rows interface{ Scan(dest ...any) error }) (*models.Suggestion, error) {
	var (
		id          int64
		title       string
		why         string
		effort      string
		impact      string
		impactScore int
		category    string
		sourceIDs   string
		status      string
		priority    int
		notes       string
		reportID    sql.NullInt64
		issueID     sql.NullString
		issueIdent  sql.NullString
		issueURL    sql.NullString
		createdAt   int64
		actionedAt  int64
	)
	if err := rows.Scan(&id, &title, &why, &effort, &impact, &impactScore, &category, &sourceIDs,
		&status, &priority, &notes, &reportID, &issueID, &issueIdent, &issueURL, &createdAt, &actionedAt); err != nil {
		return nil, err
	}
	sg := &models.Suggestion{
		SuggestionID: id,
		Title:        title,
		Why:          why,
		Effort:       effort,
		Impact:       impact,
		ImpactScore:  impactScore,
		Category:     category,
		Status:       status,
		Priority:     priority,
		Notes:        notes,
		CreatedAt:    time.Unix(createdAt, 0).UTC(),
		ActionedAt:   time.Unix(actionedAt, 0).UTC(),
	}
	if sourceIDs != "" && sourceIDs != "[]" {
		if err := json.Unmarshal([]byte(sourceIDs), &sg.SourceIntelIDs); err != nil {
			return nil, fmt.Errorf("suggestion %d has bad source_intel_ids: %w", id, err)
		}
	}
	if reportID.Valid {
		sg.ReportID = &reportID.Int64
	}
	if issueID.Valid {
		sg.IssueID = &issueID.String
	}
	if issueIdent.Valid {
		sg.IssueIdentifier = &issueIdent.String
	}
	if issueURL.Valid {
		sg.IssueURL = &issueURL.String
	}
	return sg, nil
}

func (s *sqliteStore) CreateSuggestion(ctx context.Context, sg models.Suggestion) (int64, error) {
	if sg.Title == "" {
		return 0, errors.New("suggestion title required")
	}
	if sg.Why == "" {
		return 0, errors.New("suggestion why required")
	}
	if !models.ValidLevel(sg.Effort) {
		return 0, fmt.Errorf("unknown effort %q", sg.Effort)
	}
	if !models.ValidLevel(sg.Impact) {
		return 0, fmt.Errorf("unknown impact %q", sg.Impact)
	}
	priority := sg.Priority
	if priority == 0 {
		priority = 3
	}
	if priority < models.PriorityMin || priority > models.PriorityMax {
		return 0, fmt.Errorf("priority %d out of range", priority)
	}
	ids := "[]"
	if len(sg.SourceIntelIDs) > 0 {
		b, err := json.Marshal(sg.SourceIntelIDs)
		if err != nil {
			return 0, err
		}
		ids = string(b)
	}
	now := time.Now().UTC().Unix()
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO suggestions(title, why, effort, impact, impact_score, category, source_intel_ids, status, priority, notes, created_at, actioned_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.Title, sg.Why, sg.Effort, sg.Impact, clampScore(sg.ImpactScore), sg.Category, ids,
		models.SuggestionPending, priority, sg.Notes, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) GetSuggestion(ctx context.Context, suggestionID int64) (*models.Suggestion, error) {
	row := s.stmtGetSuggestion.QueryRowContext(ctx, suggestionID)
	sg, err := scanSuggestionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("suggestion %d: %w", suggestionID, ErrNotFound)
		}
		return nil, err
	}
	return sg, nil
}

func (s *sqliteStore) ListSuggestions(ctx context.Context, status string, limit int) ([]models.Suggestion, error) {
	q := `SELECT ` + suggestionCols + ` FROM suggestions`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY priority ASC, created_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.Suggestion
	for rows.Next() {
		sg, err := scanSuggestionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

// TransitionSuggestion moves a suggestion to a new status if the transition is legal.
// The update is conditional on the observed current status, so a failed transition
// never mutates the row. Every successful transition refreshes actioned_at.
func (s *sqliteStore) TransitionSuggestion(ctx context.Context, suggestionID int64, to string) (*models.Suggestion, error) {
	if !models.ValidSuggestionStatus(to) {
		return nil, fmt.Errorf("unknown suggestion status %q", to)
	}
	cur, err := s.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(cur.Status, to) {
		return nil, &IllegalTransitionError{From: cur.Status, To: to}
	}
	res, err := s.stmtTransition.ExecContext(ctx, to, time.Now().UTC().Unix(), suggestionID, cur.Status)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost a race: the row moved since the read. Re-check against its new status.
		cur, err = s.GetSuggestion(ctx, suggestionID)
		if err != nil {
			return nil, err
		}
		return nil, &IllegalTransitionError{From: cur.Status, To: to}
	}
	return s.GetSuggestion(ctx, suggestionID)
}

// UpdateSuggestionFields edits notes and/or priority without touching actioned_at.
func (s *sqliteStore) UpdateSuggestionFields(ctx context.Context, suggestionID int64, notes *string, priority *int) error {
	if notes == nil && priority == nil {
		return nil
	}
	if priority != nil && (*priority < models.PriorityMin || *priority > models.PriorityMax) {
		return fmt.Errorf("priority %d out of range", *priority)
	}
	q := `UPDATE suggestions SET `
	var sets []string
	var args []any
	if notes != nil {
		sets = append(sets, `notes = ?`)
		args = append(args, *notes)
	}
	if priority != nil {
		sets = append(sets, `priority = ?`)
		args = append(args, *priority)
	}
	for i, set := range sets {
		if i > 0 {
			q += `, `
		}
		q += set
	}
	q += ` WHERE suggestion_id = ?`
	args = append(args, suggestionID)
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Sprintf("suggestion %d", suggestionID))
}

func (s *sqliteStore) SetSuggestionReport(ctx context.Context, suggestionID, reportID int64) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE suggestions SET report_id = ? WHERE suggestion_id = ?`, reportID, suggestionID)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Sprintf("suggestion %d", suggestionID))
}

func (s *sqliteStore) SetSuggestionIssue(ctx context.Context, suggestionID int64, issueID, identifier, url string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE suggestions SET issue_id = ?, issue_identifier = ?, issue_url = ? WHERE suggestion_id = ?`,
		issueID, identifier, url, suggestionID)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Sprintf("suggestion %d", suggestionID))
}

// ActiveSuggestionTitleExists reports whether a suggestion with this exact title exists
// in a non-terminal status. Dismissed and completed suggestions do not block re-creation.
func (s *sqliteStore) ActiveSuggestionTitleExists(ctx context.Context, title string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suggestions WHERE title = ? AND status NOT IN (?, ?)`,
		title, models.SuggestionDismissed, models.SuggestionCompleted).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) CountSuggestionsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM suggestions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// NextQueuedSuggestion returns the most urgent queued suggestion (lowest priority number,
// then oldest), or nil when the queue is empty.
func (s *sqliteStore) NextQueuedSuggestion(ctx context.Context) (*models.Suggestion, error) {
	row := s.stmtNextQueued.QueryRowContext(ctx)
	sg, err := scanSuggestionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sg, nil
}

// --- Overnight runs ---

const runCols = `run_id, status, started_at, completed_at, tasks_started, tasks_completed, summary`

func scanRunRow(rows interface{ Scan(dest ...any) error }) (*models.OvernightRun, error) {
	var (
		id          int64
		status      string
		startedAt   int64
		completedAt sql.NullInt64
		started     int
		completed   int
		summary     string
	)
	if err := rows.Scan(&id, &status, &startedAt, &completedAt, &started, &completed, &summary); err != nil {
		return nil, err
	}
	r := &models.OvernightRun{
		RunID:          id,
		Status:         status,
		StartedAt:      time.Unix(startedAt, 0).UTC(),
		TasksStarted:   started,
		TasksCompleted: completed,
		Summary:        summary,
	}
	if completedAt.Valid {
		ct := time.Unix(completedAt.Int64, 0).UTC()
		r.CompletedAt = &ct
	}
	return r, nil
}

// InsertRunningRun creates a running overnight run. The partial unique index on
// status='running' makes this the atomic singleton check: a concurrent insert fails
// with a constraint violation mapped to ErrRunAlreadyActive.
func (s *sqliteStore) InsertRunningRun(ctx context.Context) (*models.OvernightRun, error) {
	now := time.Now().UTC()
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO overnight_runs(status, started_at) VALUES(?, ?)`,
		models.RunRunning, now.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRunAlreadyActive
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.OvernightRun{RunID: id, Status: models.RunRunning, StartedAt: now.Truncate(time.Second)}, nil
}

func (s *sqliteStore) GetRun(ctx context.Context, runID int64) (*models.OvernightRun, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+runCols+` FROM overnight_runs WHERE run_id = ?`, runID)
	r, err := scanRunRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("overnight run %d: %w", runID, ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

// ActiveRun returns the running overnight run, or nil when none is active.
func (s *sqliteStore) ActiveRun(ctx context.Context) (*models.OvernightRun, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+runCols+` FROM overnight_runs WHERE status = ?`, models.RunRunning)
	r, err := scanRunRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func (s *sqliteStore) FinishRun(ctx context.Context, runID int64, status string, tasksStarted, tasksCompleted int, summary string) error {
	if status != models.RunCompleted && status != models.RunStopped {
		return fmt.Errorf("unknown final run status %q", status)
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE overnight_runs SET status = ?, completed_at = ?, tasks_started = ?, tasks_completed = ?, summary = ? WHERE run_id = ? AND status = ?`,
		status, time.Now().UTC().Unix(), tasksStarted, tasksCompleted, summary, runID, models.RunRunning)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Sprintf("running overnight run %d", runID))
}

func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]models.OvernightRun, error) {
	q := `SELECT ` + runCols + ` FROM overnight_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.OvernightRun
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// --- Reports ---

const reportCols = `report_id, title, type, content, suggestion_id, run_id, created_at`

func scanReportRow(rows interface{ Scan(dest ...any) error }) (*models.Report, error) {
	var (
		id           int64
		title        string
		typ          string
		content      string
		suggestionID sql.NullInt64
		runID        sql.NullInt64
		createdAt    int64
	)
	if err := rows.Scan(&id, &title, &typ, &content, &suggestionID, &runID, &createdAt); err != nil {
		return nil, err
	}
	r := &models.Report{
		ReportID:  id,
		Title:     title,
		Type:      typ,
		Content:   content,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}
	if suggestionID.Valid {
		r.SuggestionID = &suggestionID.Int64
	}
	if runID.Valid {
		r.RunID = &runID.Int64
	}
	return r, nil
}

func (s *sqliteStore) CreateReport(ctx context.Context, r models.Report) (int64, error) {
	if r.Title == "" {
		return 0, errors.New("report title required")
	}
	if r.Type == "" {
		return 0, errors.New("report type required")
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO reports(title, type, content, suggestion_id, run_id, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		r.Title, r.Type, r.Content, r.SuggestionID, r.RunID, time.Now().UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) GetReport(ctx context.Context, reportID int64) (*models.Report, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+reportCols+` FROM reports WHERE report_id = ?`, reportID)
	r, err := scanReportRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %d: %w", reportID, ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

func (s *sqliteStore) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	q := `SELECT ` + reportCols + ` FROM reports ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.Report
	for rows.Next() {
		r, err := scanReportRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// --- Settings ---

func (s *sqliteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.stmtGetSetting.QueryRowContext(ctx, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *sqliteStore) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("setting key required")
	}
	_, err := s.stmtUpsertSetting.ExecContext(ctx, key, value)
	return err
}

// ClaimRefreshSlot atomically claims a rate-limited refresh slot stored under key.
// It writes now as the new timestamp only when the stored one is older than
// now - minInterval, in a single upsert, so two concurrent callers cannot both claim.
// Returns (claimed, lastRefresh).
func (s *sqliteStore) ClaimRefreshSlot(ctx context.Context, key string, now time.Time, minInterval time.Duration) (bool, time.Time, error) {
	threshold := now.Add(-minInterval).UTC().Unix()
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value
WHERE CAST(settings.value AS INTEGER) <= ?`,
		key, strconv.FormatInt(now.UTC().Unix(), 10), threshold)
	if err != nil {
		return false, time.Time{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, time.Time{}, err
	}
	if n > 0 {
		return true, now.UTC(), nil
	}
	val, ok, err := s.GetSetting(ctx, key)
	if err != nil || !ok {
		return false, time.Time{}, err
	}
	last, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("setting %s holds non-numeric value %q", key, val)
	}
	return false, time.Unix(last, 0).UTC(), nil
}

// --- Seed ---

// SeedDefaults ensures a default orchestrator and a couple of specialist profiles exist,
// plus baseline proactivity settings. Safe to call on every startup.
func (s *sqliteStore) SeedDefaults(ctx context.Context) error {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		seed := []struct {
			id           string
			name         string
			rules        []string
			orchestrator bool
		}{
			{"atlas", "Atlas", nil, true},
			{"seo", "SEO Specialist", []string{"seo", "gsc", "search console", "keyword", "ranking"}, false},
			{"dev", "Build Engineer", []string{"build", "deploy", "bug", "refactor", "test"}, false},
		}
		for _, a := range seed {
			if err := s.CreateAgent(ctx, a.id, a.name, a.rules, a.orchestrator); err != nil {
				return err
			}
		}
	}
	defaults := map[string]string{
		SettingOvernightWindowStart: "22:00",
		SettingOvernightWindowEnd:   "06:00",
		SettingRefreshIntervalMin:   "60",
	}
	for k, v := range defaults {
		if _, ok, err := s.GetSetting(ctx, k); err != nil {
			return err
		} else if !ok {
			if err := s.SetSetting(ctx, k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
