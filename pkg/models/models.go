// Package models provides shared types for the Superclaw HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// Task statuses.
const (
	TaskPending   = "pending"
	TaskActive    = "active"
	TaskCompleted = "completed"
)

// Suggestion statuses.
const (
	SuggestionPending    = "pending"
	SuggestionApproved   = "approved"
	SuggestionDismissed  = "dismissed"
	SuggestionQueued     = "queued"
	SuggestionInProgress = "in_progress"
	SuggestionCompleted  = "completed"
)

// Overnight run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunStopped   = "stopped"
)

// Effort and impact levels for suggestions.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Suggestion priority bounds (1 = most urgent).
const (
	PriorityMin = 1
	PriorityMax = 4
)

// Report types.
const (
	ReportTypeOvernight  = "overnight"
	ReportTypeSuggestion = "suggestion"
	ReportTypeManual     = "manual"
)

// AllowedTransitions is the suggestion status state machine: current status -> legal next statuses.
// dismissed and completed are terminal.
var AllowedTransitions = map[string][]string{
	SuggestionPending:    {SuggestionApproved, SuggestionDismissed},
	SuggestionApproved:   {SuggestionQueued, SuggestionDismissed},
	SuggestionQueued:     {SuggestionInProgress, SuggestionDismissed},
	SuggestionInProgress: {SuggestionCompleted, SuggestionDismissed},
	SuggestionDismissed:  {},
	SuggestionCompleted:  {},
}

// CanTransition reports whether a suggestion may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TerminalSuggestion reports whether status is a terminal suggestion status.
func TerminalSuggestion(status string) bool {
	return status == SuggestionDismissed || status == SuggestionCompleted
}

// ValidSuggestionStatus reports whether status is a known suggestion status.
func ValidSuggestionStatus(status string) bool {
	_, ok := AllowedTransitions[status]
	return ok
}

// ValidLevel reports whether s is a known effort/impact level.
func ValidLevel(s string) bool {
	return s == LevelLow || s == LevelMedium || s == LevelHigh
}

// AgentProfile is a specialist capability profile the router scores against.
type AgentProfile struct {
	AgentID        string    `json:"agent_id"`
	Name           string    `json:"name"`
	Enabled        bool      `json:"enabled"`
	HandoffRules   []string  `json:"handoff_rules"`
	IsOrchestrator bool      `json:"is_orchestrator,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// Task is an ad-hoc work item created from chat input or imported from a backlog.
type Task struct {
	TaskID        int64      `json:"task_id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	AssignedAgent *string    `json:"assigned_agent,omitempty"`
	WhatDoing     string     `json:"what_doing,omitempty"`
	SessionID     *string    `json:"session_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// IntelItem is an externally-sourced signal feeding suggestion generation.
type IntelItem struct {
	IntelID        int64      `json:"intel_id"`
	Category       string     `json:"category"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary,omitempty"`
	URL            string     `json:"url,omitempty"`
	Source         string     `json:"source,omitempty"`
	RelevanceScore int        `json:"relevance_score"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// Suggestion is a reviewable candidate unit of work with its own lifecycle.
type Suggestion struct {
	SuggestionID    int64     `json:"suggestion_id"`
	Title           string    `json:"title"`
	Why             string    `json:"why"`
	Effort          string    `json:"effort"`
	Impact          string    `json:"impact"`
	ImpactScore     int       `json:"impact_score"`
	Category        string    `json:"category,omitempty"`
	SourceIntelIDs  []int64   `json:"source_intel_ids,omitempty"`
	Status          string    `json:"status"`
	Priority        int       `json:"priority"`
	Notes           string    `json:"notes,omitempty"`
	ReportID        *int64    `json:"report_id,omitempty"`
	IssueID         *string   `json:"issue_id,omitempty"`
	IssueIdentifier *string   `json:"issue_identifier,omitempty"`
	IssueURL        *string   `json:"issue_url,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	ActionedAt      time.Time `json:"actioned_at,omitempty"`
}

// OvernightRun brackets a time-boxed unattended execution window.
type OvernightRun struct {
	RunID          int64      `json:"run_id"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TasksStarted   int        `json:"tasks_started"`
	TasksCompleted int        `json:"tasks_completed"`
	Summary        string     `json:"summary,omitempty"`
}

// Report is a completed-work write-up, optionally linked to a suggestion and/or run.
type Report struct {
	ReportID     int64     `json:"report_id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	Content      string    `json:"content,omitempty"`
	SuggestionID *int64    `json:"suggestion_id,omitempty"`
	RunID        *int64    `json:"run_id,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// RouteDecision is the router's answer for a piece of work text.
type RouteDecision struct {
	AgentID      string   `json:"agent_id"`
	Score        int      `json:"score"`
	MatchedRules []string `json:"matched_rules,omitempty"`
}

// RefreshResult is the outcome of an intel refresh trigger.
type RefreshResult struct {
	Skipped    bool          `json:"skipped"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Collected  int           `json:"collected"`
	Generated  int           `json:"generated"`
}
