package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// --- Agents ---

const agentCols = `agent_id, name, enabled, handoff_rules, is_orchestrator, created_at`

func scanAgentRow(rows interface{ Scan(dest ...any) error }) (*models.AgentProfile, error) {
	var (
		id             string
		name           string
		enabled        int
		rulesJSON      string
		isOrchestrator int
		createdAt      int64
	)
	if err := rows.Scan(&id, &name, &enabled, &rulesJSON, &isOrchestrator, &createdAt); err != nil {
		return nil, err
	}
	rules, err := decodeRules(rulesJSON)
	if err != nil {
		return nil, fmt.Errorf("agent %s has bad handoff_rules: %w", id, err)
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

func decodeRules(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sqliteStore) ListAgents(ctx context.Context) ([]models.AgentProfile, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+agentCols+` FROM agents ORDER BY agent_id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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

func (s *sqliteStore) ListEnabledAgents(ctx context.Context) ([]models.AgentProfile, error) {
	rows, err := s.stmtEnabledAgents.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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

func (s *sqliteStore) GetAgent(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	row := s.stmtGetAgent.QueryRowContext(ctx, agentID)
	a, err := scanAgentRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
		}
		return nil, err
	}
	return a, nil
}

func (s *sqliteStore) CreateAgent(ctx context.Context, agentID, name string, rules []string, isOrchestrator bool) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return errors.New("agent id required")
	}
	if name == "" {
		name = agentID
	}
	orch := 0
	if isOrchestrator {
		// The orchestrator is always enabled; the partial unique index rejects a second one.
		orch = 1
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO agents(agent_id, name, enabled, handoff_rules, is_orchestrator, created_at) VALUES(?, ?, 1, ?, ?, ?)`,
		agentID, name, encodeRules(rules), orch, time.Now().UTC().Unix())
	if err != nil && isUniqueViolation(err) && isOrchestrator {
		return errors.New("an orchestrator profile already exists")
	}
	return err
}

func (s *sqliteStore) UpdateAgentRules(ctx context.Context, agentID string, rules []string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE agents SET handoff_rules = ? WHERE agent_id = ?`, encodeRules(rules), agentID)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Sprintf("agent %s", agentID))
}

func (s *sqliteStore) SetAgentEnabled(ctx context.Context, agentID string, enabled bool) error {
	val := 0
	if enabled {
		val = 1
	}
	// Disabling is refused for the orchestrator in the same statement; rows==0 is then
	// disambiguated by a read.
	res, err := s.DB.ExecContext(ctx,
		`UPDATE agents SET enabled = ? WHERE agent_id = ? AND NOT (is_orchestrator = 1 AND ? = 0)`,
		val, agentID, val)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		a, err := s.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		if a.IsOrchestrator && !enabled {
			return &ProtectedAgentError{AgentID: agentID}
		}
	}
	return nil
}

func (s *sqliteStore) DeleteAgent(ctx context.Context, agentID string) error {
	// Deletion may leave dangling agent ids on tasks/suggestions; the router treats
	// unknown agents as fallback.
	res, err := s.DB.ExecContext(ctx, `DELETE FROM agents WHERE agent_id = ?`, agentID)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Sprintf("agent %s", agentID))
}

// --- Tasks ---

const taskCols = `task_id, title, status, assigned_agent, what_doing, session_id, created_at, completed_at`

func scanTaskRow(rows interface{ Scan(dest ...any) error }) (*models.Task, error) {
	var (
		id          int64
		title       string
		status      string
		assigned    sql.NullString
		whatDoing   string
		sessionID   sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := rows.Scan(&id, &title, &status, &assigned, &whatDoing, &sessionID, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	t := &models.Task{
		TaskID:    id,
		Title:     title,
		Status:    status,
		WhatDoing: whatDoing,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}
	if assigned.Valid {
		t.AssignedAgent = &assigned.String
	}
	if sessionID.Valid {
		t.SessionID = &sessionID.String
	}
	if completedAt.Valid {
		ct := time.Unix(completedAt.Int64, 0).UTC()
		t.CompletedAt = &ct
	}
	return t, nil
}

func (s *sqliteStore) ListTasks(ctx context.Context, status string, limit int) ([]models.Task, error) {
	q := `SELECT ` + taskCols + ` FROM tasks`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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

func (s *sqliteStore) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE task_id = ?`, taskID)
	t, err := scanTaskRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *sqliteStore) CreateTask(ctx context.Context, title string, assignedAgent, sessionID *string) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, errors.New("task title required")
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO tasks(title, status, assigned_agent, session_id, created_at) VALUES(?, ?, ?, ?, ?)`,
		title, models.TaskPending, assignedAgent, sessionID, time.Now().UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) UpdateTaskStatus(ctx context.Context, taskID int64, status string) error {
	switch status {
	case models.TaskPending, models.TaskActive, models.TaskCompleted:
	default:
		return fmt.Errorf("unknown task status %q", status)
	}
	now := time.Now().UTC().Unix()
	var res sql.Result
	var err error
	if status == models.TaskCompleted {
		// completed_at is set once, on the transition into completed.
		res, err = s.DB.ExecContext(ctx,
			`UPDATE tasks SET status = ?, completed_at = ? WHERE task_id = ? AND status != ?`,
			status, now, taskID, models.TaskCompleted)
	} else {
		// Completed tasks never transition out.
		res, err = s.DB.ExecContext(ctx,
			`UPDATE tasks SET status = ? WHERE task_id = ? AND status != ?`,
			status, taskID, models.TaskCompleted)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
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

func (s *sqliteStore) UpdateTaskProgress(ctx context.Context, taskID int64, whatDoing string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET what_doing = ? WHERE task_id = ?`, whatDoing, taskID)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Sprintf("task %d", taskID))
}

func (s *sqliteStore) AssignTask(ctx context.Context, taskID int64, agentID *string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET assigned_agent = ? WHERE task_id = ?`, agentID, taskID)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Sprintf("task %d", taskID))
}

// --- Intel ---

const intelCols = `intel_id, category, title, summary, url, source, relevance_score, created_at, read_at`

func scanIntelRow(rows interface{ Scan(dest ...any) error }) (*models.IntelItem, error) {
	var (
		id        int64
		category  string
		title     string
		summary   string
		url       string
		source    string
		score     int
		createdAt int64
		readAt    sql.NullInt64
	)
	if err := rows.Scan(&id, &category, &title, &summary, &url, &source, &score, &createdAt, &readAt); err != nil {
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
	if readAt.Valid {
		rt := time.Unix(readAt.Int64, 0).UTC()
		it.ReadAt = &rt
	}
	return it, nil
}

func (s *sqliteStore) AppendIntel(ctx context.Context, item models.IntelItem) (int64, error) {
	if item.Title == "" {
		return 0, errors.New("intel title required")
	}
	if item.Category == "" {
		return 0, errors.New("intel category required")
	}
	score := clampScore(item.RelevanceScore)
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO intel_items(category, title, summary, url, source, relevance_score, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		item.Category, item.Title, item.Summary, item.URL, item.Source, score, time.Now().UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) ListIntel(ctx context.Context, category string, unreadOnly bool, limit int) ([]models.IntelItem, error) {
	q := `SELECT ` + intelCols + ` FROM intel_items`
	var conds []string
	var args []any
	if category != "" {
		conds = append(conds, `category = ?`)
		args = append(args, category)
	}
	if unreadOnly {
		conds = append(conds, `read_at IS NULL`)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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

func (s *sqliteStore) ListUnreadIntelAbove(ctx context.Context, minScore int) ([]models.IntelItem, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+intelCols+` FROM intel_items WHERE read_at IS NULL AND relevance_score >= ? ORDER BY category ASC, relevance_score DESC`,
		minScore)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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

func (s *sqliteStore) MarkIntelRead(ctx context.Context, intelIDs []int64) error {
	if len(intelIDs) == 0 {
		return nil
	}
	now := time.Now().UTC().Unix()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(intelIDs)), ",")
	args := make([]any, 0, len(intelIDs)+1)
	args = append(args, now)
	for _, id := range intelIDs {
		args = append(args, id)
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE intel_items SET read_at = ? WHERE intel_id IN (`+placeholders+`) AND read_at IS NULL`, args...)
	return err
}

func (s *sqliteStore) ArchiveIntelBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM intel_items WHERE created_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- shared helpers ---

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// mustAffect returns ErrNotFound when an UPDATE/DELETE touched zero rows.
func mustAffect(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
