package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// --- Agents ---

const agentCols = `agent_id, name, enabled, handoff_rules, is_orchestrator, created_at`

func scanAgentRow(row interface{ Scan(dest ...any) error }) (*models.AgentProfile, error) {
	var (
		id             string
		name           string
		enabled        int
		rulesJSON      string
		isOrchestrator int
		createdAt      int64
	)
	if err := row.Scan(&id, &name, &enabled, &rulesJSON, &isOrchestrator, &createdAt); err != nil {
		return nil, err
	}
	var rules []string
	if rulesJSON != "" {
		if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
			return nil, fmt.Errorf("agent %s has bad handoff_rules: %w", id, err)
		}
	}
	return &models.AgentProfile{
		AgentID:        id,
		Name:           name,
		Enabled:        enabled != 0,
		HandoffRules:   rules,
		IsOrchestrator: isOrchestrator != 0,
		CreatedAt:      time.Unix(createdAt, 0).UTC(),
	}, nil
}

func encodeRules(rules []string) string {
	if rules == nil {
		rules = []string{}
	}
	b, err := json.Marshal(rules)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (s *Store) listAgentsWhere(ctx context.Context, where string) ([]models.AgentProfile, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+agentCols+` FROM agents`+where+` ORDER BY agent_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AgentProfile
	for rows.Next() {
		a, err := scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) ListAgents(ctx context.Context) ([]models.AgentProfile, error) {
	return s.listAgentsWhere(ctx, ``)
}

func (s *Store) ListEnabledAgents(ctx context.Context) ([]models.AgentProfile, error) {
	return s.listAgentsWhere(ctx, ` WHERE enabled = 1`)
}

func (s *Store) GetAgent(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	a, err := scanAgentRow(s.Pool.QueryRow(ctx, `SELECT `+agentCols+` FROM agents WHERE agent_id = $1`, agentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("agent %s: %w", agentID, store.ErrNotFound)
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) CreateAgent(ctx context.Context, agentID, name string, rules []string, isOrchestrator bool) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return errors.New("agent id required")
	}
	if name == "" {
		name = agentID
	}
	orch := 0
	if isOrchestrator {
		orch = 1
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO agents(agent_id, name, enabled, handoff_rules, is_orchestrator, created_at) VALUES($1, $2, 1, $3, $4, $5)`,
		agentID, name, encodeRules(rules), orch, time.Now().UTC().Unix())
	if err != nil && isUniqueViolation(err) && isOrchestrator {
		return errors.New("an orchestrator profile already exists")
	}
	return err
}

func (s *Store) UpdateAgentRules(ctx context.Context, agentID string, rules []string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE agents SET handoff_rules = $1 WHERE agent_id = $2`, encodeRules(rules), agentID)
	if err != nil {
		return err
	}
	return mustAffect(tag, fmt.Sprintf("agent %s", agentID))
}

func (s *Store) SetAgentEnabled(ctx context.Context, agentID string, enabled bool) error {
	val := 0
	if enabled {
		val = 1
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE agents SET enabled = $1 WHERE agent_id = $2 AND NOT (is_orchestrator = 1 AND $1 = 0)`,
		val, agentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		a, err := s.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		if a.IsOrchestrator && !enabled {
			return &store.ProtectedAgentError{AgentID: agentID}
		}
	}
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM agents WHERE agent_id = $1`, agentID)
	if err != nil {
		return err
	}
	return mustAffect(tag, fmt.Sprintf("agent %s", agentID))
}

// --- Tasks ---

const taskCols = `task_id, title, status, assigned_agent, what_doing, session_id, created_at, completed_at`

func scanTaskRow(row interface{ Scan(dest ...any) error }) (*models.Task, error) {
	var (
		id          int64
		title       string
		status      string
		assigned    *string
		whatDoing   string
		sessionID   *string
		createdAt   int64
		completedAt *int64
	)
	if err := row.Scan(&id, &title, &status, &assigned, &whatDoing, &sessionID, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	t := &models.Task{
		TaskID:        id,
		Title:         title,
		Status:        status,
		AssignedAgent: assigned,
		WhatDoing:     whatDoing,
		SessionID:     sessionID,
		CreatedAt:     time.Unix(createdAt, 0).UTC(),
	}
	if completedAt != nil {
		ct := time.Unix(*completedAt, 0).UTC()
		t.CompletedAt = &ct
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, status string, limit int) ([]models.Task, error) {
	q := `SELECT ` + taskCols + ` FROM tasks`
	var args []any
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	t, err := scanTaskRow(s.Pool.QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE task_id = $1`, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", taskID, store.ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, title string, assignedAgent, sessionID *string) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, errors.New("task title required")
	}
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO tasks(title, status, assigned_agent, session_id, created_at) VALUES($1, $2, $3, $4, $5) RETURNING task_id`,
		title, models.TaskPending, toNull(assignedAgent), toNull(sessionID), time.Now().UTC().Unix()).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, taskID int64, status string) error {
	switch status {
	case models.TaskPending, models.TaskActive, models.TaskCompleted:
	default:
		return fmt.Errorf("unknown task status %q", status)
	}
	now := time.Now().UTC().Unix()
	var tag pgconn.CommandTag
	var err error
	if status == models.TaskCompleted {
		tag, err = s.Pool.Exec(ctx,
			`UPDATE tasks SET status = $1, completed_at = $2 WHERE task_id = $3 AND status != $1`,
			status, now, taskID)
	} else {
		tag, err = s.Pool.Exec(ctx,
			`UPDATE tasks SET status = $1 WHERE task_id = $2 AND status != $3`,
			status, taskID, models.TaskCompleted)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		t, err := s.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.Status == models.TaskCompleted {
			return fmt.Errorf("task %d is completed and cannot change status", taskID)
		}
	}
	return nil
}

func (s *Store) UpdateTaskProgress(ctx context.Context, taskID int64, whatDoing string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tasks SET what_doing = $1 WHERE task_id = $2`, whatDoing, taskID)
	if err != nil {
		return err
	}
	return mustAffect(tag, fmt.Sprintf("task %d", taskID))
}

func (s *Store) AssignTask(ctx context.Context, taskID int64, agentID *string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tasks SET assigned_agent = $1 WHERE task_id = $2`, toNull(agentID), taskID)
	if err != nil {
		return err
	}
	return mustAffect(tag, fmt.Sprintf("task %d", taskID))
}

// --- Intel ---

const intelCols = `intel_id, category, title, summary, url, source, relevance_score, created_at, read_at`

func scanIntelRow(row interface{ Scan(dest ...any) error }) (*models.IntelItem, error) {
	var (
		id        int64
		category  string
		title     string
		summary   string
		url       string
		source    string
		score     int
		createdAt int64
		readAt    *int64
	)
	if err := row.Scan(&id, &category, &title, &summary, &url, &source, &score, &createdAt, &readAt); err != nil {
		return nil, err
	}
	it := &models.IntelItem{
		IntelID:        id,
		Category:       category,
		Title:          title,
		Summary:        summary,
		URL:            url,
		Source:         source,
		RelevanceScore: score,
		CreatedAt:      time.Unix(createdAt, 0).UTC(),
	}
	if readAt != nil {
		rt := time.Unix(*readAt, 0).UTC()
		it.ReadAt = &rt
	}
	return it, nil
}

func (s *Store) AppendIntel(ctx context.Context, item models.IntelItem) (int64, error) {
	if item.Title == "" {
		return 0, errors.New("intel title required")
	}
	if item.Category == "" {
		return 0, errors.New("intel category required")
	}
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO intel_items(category, title, summary, url, source, relevance_score, created_at) VALUES($1, $2, $3, $4, $5, $6, $7) RETURNING intel_id`,
		item.Category, item.Title, item.Summary, item.URL, item.Source, clampScore(item.RelevanceScore), time.Now().UTC().Unix()).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListIntel(ctx context.Context, category string, unreadOnly bool, limit int) ([]models.IntelItem, error) {
	q := `SELECT ` + intelCols + ` FROM intel_items`
	var conds []string
	var args []any
	if category != "" {
		args = append(args, category)
		conds = append(conds, fmt.Sprintf(`category = $%d`, len(args)))
	}
	if unreadOnly {
		conds = append(conds, `read_at IS NULL`)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.IntelItem
	for rows.Next() {
		it, err := scanIntelRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (s *Store) ListUnreadIntelAbove(ctx context.Context, minScore int) ([]models.IntelItem, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+intelCols+` FROM intel_items WHERE read_at IS NULL AND relevance_score >= $1 ORDER BY category ASC, relevance_score DESC`,
		minScore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.IntelItem
	for rows.Next() {
		it, err := scanIntelRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (s *Store) MarkIntelRead(ctx context.Context, intelIDs []int64) error {
	if len(intelIDs) == 0 {
		return nil
	}
	_, err := s.Pool.Exec(ctx,
		`UPDATE intel_items SET read_at = $1 WHERE intel_id = ANY($2) AND read_at IS NULL`,
		time.Now().UTC().Unix(), intelIDs)
	return err
}

func (s *Store) ArchiveIntelBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM intel_items WHERE created_at < $1`, cutoff.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- Suggestions ---

const suggestionCols = `suggestion_id, title, why, effort, impact, impact_score, category, source_intel_ids, status, priority, notes, report_id, issue_id, issue_identifier, issue_url, created_at, actioned_at`

func scanSuggestionRow(row interface{ Scan(dest ...any) error }) (*models.Suggestion, error) {
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
		reportID    *int64
		issueID     *string
		issueIdent  *string
		issueURL    *string
		createdAt   int64
		actionedAt  int64
	)
	if err := row.Scan(&id, &title, &why, &effort, &impact, &impactScore, &category, &sourceIDs,
		&status, &priority, &notes, &reportID, &issueID, &issueIdent, &issueURL, &createdAt, &actionedAt); err != nil {
		return nil, err
	}
	sg := &models.Suggestion{
		SuggestionID:    id,
		Title:           title,
		Why:             why,
		Effort:          effort,
		Impact:          impact,
		ImpactScore:     impactScore,
		Category:        category,
		Status:          status,
		Priority:        priority,
		Notes:           notes,
		ReportID:        reportID,
		IssueID:         issueID,
		IssueIdentifier: issueIdent,
		IssueURL:        issueURL,
		CreatedAt:       time.Unix(createdAt, 0).UTC(),
		ActionedAt:      time.Unix(actionedAt, 0).UTC(),
	}
	if sourceIDs != "" && sourceIDs != "[]" {
		if err := json.Unmarshal([]byte(sourceIDs), &sg.SourceIntelIDs); err != nil {
			return nil, fmt.Errorf("suggestion %d has bad source_intel_ids: %w", id, err)
		}
	}
	return sg, nil
}

func (s *Store) CreateSuggestion(ctx context.Context, sg models.Suggestion) (int64, error) {
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
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO suggestions(title, why, effort, impact, impact_score, category, source_intel_ids, status, priority, notes, created_at, actioned_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING suggestion_id`,
		sg.Title, sg.Why, sg.Effort, sg.Impact, clampScore(sg.ImpactScore), sg.Category, ids,
		models.SuggestionPending, priority, sg.Notes, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetSuggestion(ctx context.Context, suggestionID int64) (*models.Suggestion, error) {
	sg, err := scanSuggestionRow(s.Pool.QueryRow(ctx, `SELECT `+suggestionCols+` FROM suggestions WHERE suggestion_id = $1`, suggestionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("suggestion %d: %w", suggestionID, store.ErrNotFound)
		}
		return nil, err
	}
	return sg, nil
}

func (s *Store) ListSuggestions(ctx context.Context, status string, limit int) ([]models.Suggestion, error) {
	q := `SELECT ` + suggestionCols + ` FROM suggestions`
	var args []any
	if status != "" {
		args = append(args, status)
		q += ` WHERE status = $1`
	}
	q += ` ORDER BY priority ASC, created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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

func (s *Store) TransitionSuggestion(ctx context.Context, suggestionID int64, to string) (*models.Suggestion, error) {
	if !models.ValidSuggestionStatus(to) {
		return nil, fmt.Errorf("unknown suggestion status %q", to)
	}
	cur, err := s.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(cur.Status, to) {
		return nil, &store.IllegalTransitionError{From: cur.Status, To: to}
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE suggestions SET status = $1, actioned_at = $2 WHERE suggestion_id = $3 AND status = $4`,
		to, time.Now().UTC().Unix(), suggestionID, cur.Status)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		cur, err = s.GetSuggestion(ctx, suggestionID)
		if err != nil {
			return nil, err
		}
		return nil, &store.IllegalTransitionError{From: cur.Status, To: to}
	}
	return s.GetSuggestion(ctx, suggestionID)
}

func (s *Store) UpdateSuggestionFields(ctx context.Context, suggestionID int64, notes *string, priority *int) error {
	if notes == nil && priority == nil {
		return nil
	}
	if priority != nil && (*priority < models.PriorityMin || *priority > models.PriorityMax) {
		return fmt.Errorf("priority %d out of range", *priority)
	}
	var sets []string
	var args []any
	if notes != nil {
		args = append(args, *notes)
		sets = append(sets, fmt.Sprintf(`notes = $%d`, len(args)))
	}
	if priority != nil {
		args = append(args, *priority)
		sets = append(sets, fmt.Sprintf(`priority = $%d`, len(args)))
	}
	args = append(args, suggestionID)
	q := `UPDATE suggestions SET ` + strings.Join(sets, `, `) + fmt.Sprintf(` WHERE suggestion_id = $%d`, len(args))
	tag, err := s.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	return mustAffect(tag, fmt.Sprintf("suggestion %d", suggestionID))
}

func (s *Store) SetSuggestionReport(ctx context.Context, suggestionID, reportID int64) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE suggestions SET report_id = $1 WHERE suggestion_id = $2`, reportID, suggestionID)
	if err != nil {
		return err
	}
	return mustAffect(tag, fmt.Sprintf("suggestion %d", suggestionID))
}

func (s *Store) SetSuggestionIssue(ctx context.Context, suggestionID int64, issueID, identifier, url string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE suggestions SET issue_id = $1, issue_identifier = $2, issue_url = $3 WHERE suggestion_id = $4`,
		issueID, identifier, url, suggestionID)
	if err != nil {
		return err
	}
	return mustAffect(tag, fmt.Sprintf("suggestion %d", suggestionID))
}

func (s *Store) ActiveSuggestionTitleExists(ctx context.Context, title string) (bool, error) {
	var n int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM suggestions WHERE title = $1 AND status NOT IN ($2, $3)`,
		title, models.SuggestionDismissed, models.SuggestionCompleted).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CountSuggestionsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.Pool.Query(ctx, `SELECT status, COUNT(*) FROM suggestions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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

func (s *Store) NextQueuedSuggestion(ctx context.Context) (*models.Suggestion, error) {
	sg, err := scanSuggestionRow(s.Pool.QueryRow(ctx,
		`SELECT `+suggestionCols+` FROM suggestions WHERE status = 'queued' ORDER BY priority ASC, created_at ASC LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sg, nil
}

// --- Overnight runs ---

const runCols = `run_id, status, started_at, completed_at, tasks_started, tasks_completed, summary`

func scanRunRow(row interface{ Scan(dest ...any) error }) (*models.OvernightRun, error) {
	var (
		id          int64
		status      string
		startedAt   int64
		completedAt *int64
		started     int
		completed   int
		summary     string
	)
	if err := row.Scan(&id, &status, &startedAt, &completedAt, &started, &completed, &summary); err != nil {
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
	if completedAt != nil {
		ct := time.Unix(*completedAt, 0).UTC()
		r.CompletedAt = &ct
	}
	return r, nil
}

func (s *Store) InsertRunningRun(ctx context.Context) (*models.OvernightRun, error) {
	now := time.Now().UTC()
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO overnight_runs(status, started_at) VALUES($1, $2) RETURNING run_id`,
		models.RunRunning, now.Unix()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrRunAlreadyActive
		}
		return nil, err
	}
	return &models.OvernightRun{RunID: id, Status: models.RunRunning, StartedAt: now.Truncate(time.Second)}, nil
}

func (s *Store) GetRun(ctx context.Context, runID int64) (*models.OvernightRun, error) {
	r, err := scanRunRow(s.Pool.QueryRow(ctx, `SELECT `+runCols+` FROM overnight_runs WHERE run_id = $1`, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("overnight run %d: %w", runID, store.ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) ActiveRun(ctx context.Context) (*models.OvernightRun, error) {
	r, err := scanRunRow(s.Pool.QueryRow(ctx, `SELECT `+runCols+` FROM overnight_runs WHERE status = $1`, models.RunRunning))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) FinishRun(ctx context.Context, runID int64, status string, tasksStarted, tasksCompleted int, summary string) error {
	if status != models.RunCompleted && status != models.RunStopped {
		return fmt.Errorf("unknown final run status %q", status)
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE overnight_runs SET status = $1, completed_at = $2, tasks_started = $3, tasks_completed = $4, summary = $5 WHERE run_id = $6 AND status = $7`,
		status, time.Now().UTC().Unix(), tasksStarted, tasksCompleted, summary, runID, models.RunRunning)
	if err != nil {
		return err
	}
	return mustAffect(tag, fmt.Sprintf("running overnight run %d", runID))
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.OvernightRun, error) {
	q := `SELECT ` + runCols + ` FROM overnight_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $1`
	}
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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

func scanReportRow(row interface{ Scan(dest ...any) error }) (*models.Report, error) {
	var (
		id           int64
		title        string
		typ          string
		content      string
		suggestionID *int64
		runID        *int64
		createdAt    int64
	)
	if err := row.Scan(&id, &title, &typ, &content, &suggestionID, &runID, &createdAt); err != nil {
		return nil, err
	}
	return &models.Report{
		ReportID:     id,
		Title:        title,
		Type:         typ,
		Content:      content,
		SuggestionID: suggestionID,
		RunID:        runID,
		CreatedAt:    time.Unix(createdAt, 0).UTC(),
	}, nil
}

func (s *Store) CreateReport(ctx context.Context, r models.Report) (int64, error) {
	if r.Title == "" {
		return 0, errors.New("report title required")
	}
	if r.Type == "" {
		return 0, errors.New("report type required")
	}
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO reports(title, type, content, suggestion_id, run_id, created_at) VALUES($1, $2, $3, $4, $5, $6) RETURNING report_id`,
		r.Title, r.Type, r.Content, toNullInt(r.SuggestionID), toNullInt(r.RunID), time.Now().UTC().Unix()).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetReport(ctx context.Context, reportID int64) (*models.Report, error) {
	r, err := scanReportRow(s.Pool.QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE report_id = $1`, reportID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report %d: %w", reportID, store.ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	q := `SELECT ` + reportCols + ` FROM reports ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $1`
	}
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.Pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("setting key required")
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO settings(key, value) VALUES($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return err
}

func (s *Store) ClaimRefreshSlot(ctx context.Context, key string, now time.Time, minInterval time.Duration) (bool, time.Time, error) {
	threshold := now.Add(-minInterval).UTC().Unix()
	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO settings(key, value) VALUES($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
WHERE CAST(settings.value AS BIGINT) <= $3`,
		key, strconv.FormatInt(now.UTC().Unix(), 10), threshold)
	if err != nil {
		return false, time.Time{}, err
	}
	if tag.RowsAffected() > 0 {
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

func (s *Store) SeedDefaults(ctx context.Context) error {
	var n int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM agents`).Scan(&n); err != nil {
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
		store.SettingOvernightWindowStart: "22:00",
		store.SettingOvernightWindowEnd:   "06:00",
		store.SettingRefreshIntervalMin:   "60",
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

// --- helpers ---

func toNull(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func toNullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func mustAffect(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
