package store

import (
	"context"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// Store is the persistence interface for agent profiles, tasks, intel, suggestions,
// overnight runs, reports, and settings.
// Implementations: the default SQLite store (Open) and *postgres.Store (PostgreSQL).
type Store interface {
	// Agents
	ListAgents(ctx context.Context) ([]models.AgentProfile, error)
	ListEnabledAgents(ctx context.Context) ([]models.AgentProfile, error)
	GetAgent(ctx context.Context, agentID string) (*models.AgentProfile, error)
	CreateAgent(ctx context.Context, agentID, name string, rules []string, isOrchestrator bool) error
	UpdateAgentRules(ctx context.Context, agentID string, rules []string) error
	SetAgentEnabled(ctx context.Context, agentID string, enabled bool) error
	DeleteAgent(ctx context.Context, agentID string) error

	// Tasks
	ListTasks(ctx context.Context, status string, limit int) ([]models.Task, error)
	GetTask(ctx context.Context, taskID int64) (*models.Task, error)
	CreateTask(ctx context.Context, title string, assignedAgent, sessionID *string) (int64, error)
	UpdateTaskStatus(ctx context.Context, taskID int64, status string) error
	UpdateTaskProgress(ctx context.Context, taskID int64, whatDoing string) error
	AssignTask(ctx context.Context, taskID int64, agentID *string) error

	// Intel
	AppendIntel(ctx context.Context, item models.IntelItem) (int64, error)
	ListIntel(ctx context.Context, category string, unreadOnly bool, limit int) ([]models.IntelItem, error)
	ListUnreadIntelAbove(ctx context.Context, minScore int) ([]models.IntelItem, error)
	MarkIntelRead(ctx context.Context, intelIDs []int64) error
	ArchiveIntelBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Suggestions
	CreateSuggestion(ctx context.Context, s models.Suggestion) (int64, error)
	GetSuggestion(ctx context.Context, suggestionID int64) (*models.Suggestion, error)
	ListSuggestions(ctx context.Context, status string, limit int) ([]models.Suggestion, error)
	TransitionSuggestion(ctx context.Context, suggestionID int64, to string) (*models.Suggestion, error)
	UpdateSuggestionFields(ctx context.Context, suggestionID int64, notes *string, priority *int) error
	SetSuggestionReport(ctx context.Context, suggestionID, reportID int64) error
	SetSuggestionIssue(ctx context.Context, suggestionID int64, issueID, identifier, url string) error
	ActiveSuggestionTitleExists(ctx context.Context, title string) (bool, error)
	CountSuggestionsByStatus(ctx context.Context) (map[string]int64, error)
	NextQueuedSuggestion(ctx context.Context) (*models.Suggestion, error)

	// Overnight runs
	InsertRunningRun(ctx context.Context) (*models.OvernightRun, error)
	GetRun(ctx context.Context, runID int64) (*models.OvernightRun, error)
	ActiveRun(ctx context.Context) (*models.OvernightRun, error)
	FinishRun(ctx context.Context, runID int64, status string, tasksStarted, tasksCompleted int, summary string) error
	ListRuns(ctx context.Context, limit int) ([]models.OvernightRun, error)

	// Reports
	CreateReport(ctx context.Context, r models.Report) (int64, error)
	GetReport(ctx context.Context, reportID int64) (*models.Report, error)
	ListReports(ctx context.Context, limit int) ([]models.Report, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	ClaimRefreshSlot(ctx context.Context, key string, now time.Time, minInterval time.Duration) (bool, time.Time, error)

	// Lifecycle
	SeedDefaults(ctx context.Context) error
	Close() error
}
