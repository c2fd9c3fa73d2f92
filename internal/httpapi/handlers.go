package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/otel"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/porter"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 0 {
		limit = 0
	}
	return limit
}

func (a *App) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agents, _ := a.Store.ListAgents(ctx)
	tasks, _ := a.Store.ListTasks(ctx, "", 50)
	suggestions, _ := a.Store.ListSuggestions(ctx, "", 50)
	reports, _ := a.Store.ListReports(ctx, 20)
	status, err := a.Orchestrator.Status(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"config": map[string]any{
			"home":         a.Home,
			"bootstrap_id": getBootstrapID(a.Home),
		},
		"agents":      agents,
		"tasks":       tasks,
		"suggestions": suggestions,
		"reports":     reports,
		"overnight":   status,
	})
}

// handleRoute answers "which agent should take this text". The fallback is the
// current orchestrator; deleted or disabled agents are simply not candidates.
func (a *App) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	decision, err := a.route(r, body.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, decision)
}

func (a *App) route(r *http.Request, text string) (models.RouteDecision, error) {
	agents, err := a.Store.ListEnabledAgents(r.Context())
	if err != nil {
		return models.RouteDecision{}, err
	}
	fallback := a.Router.Fallback
	for _, ag := range agents {
		if ag.IsOrchestrator {
			fallback = ag.AgentID
		}
	}
	router := &porter.Router{Fallback: fallback, Scorer: a.Router.Scorer}
	decision := router.Route(text, agents)
	otel.RecordRouteDecision(r.Context(), decision.AgentID, decision.Score == 0)
	return decision, nil
}

// --- Agents ---

func (a *App) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agents, err := a.Store.ListAgents(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, agents)
	case http.MethodPost:
		var body struct {
			AgentID        string   `json:"agent_id"`
			Name           string   `json:"name"`
			HandoffRules   []string `json:"handoff_rules"`
			IsOrchestrator bool     `json:"is_orchestrator"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := a.Store.CreateAgent(r.Context(), body.AgentID, body.Name, body.HandoffRules, body.IsOrchestrator); err != nil {
			writeDomainError(w, err)
			return
		}
		agent, err := a.Store.GetAgent(r.Context(), body.AgentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		a.Hub.PublishJSON(map[string]any{"type": "agent_update", "agent_id": body.AgentID})
		writeJSON(w, agent)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleAgentByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/agents/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	agentID := parts[0]

	if len(parts) >= 2 && parts[1] != "" {
		switch parts[1] {
		case "enabled":
			if r.Method != http.MethodPost {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			var body struct {
				Enabled bool `json:"enabled"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			if err := a.Store.SetAgentEnabled(r.Context(), agentID, body.Enabled); err != nil {
				writeDomainError(w, err)
				return
			}
			a.Hub.PublishJSON(map[string]any{"type": "agent_update", "agent_id": agentID, "enabled": body.Enabled})
			writeJSON(w, map[string]any{"ok": true})
		case "rules":
			if r.Method != http.MethodPut {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			var body struct {
				HandoffRules []string `json:"handoff_rules"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			if err := a.Store.UpdateAgentRules(r.Context(), agentID, body.HandoffRules); err != nil {
				writeDomainError(w, err)
				return
			}
			a.Hub.PublishJSON(map[string]any{"type": "agent_update", "agent_id": agentID})
			writeJSON(w, map[string]any{"ok": true})
		default:
			writeJSONError(w, http.StatusNotFound, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		agent, err := a.Store.GetAgent(r.Context(), agentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, agent)
	case http.MethodDelete:
		if err := a.Store.DeleteAgent(r.Context(), agentID); err != nil {
			writeDomainError(w, err)
			return
		}
		a.Hub.PublishJSON(map[string]any{"type": "agent_update", "agent_id": agentID, "deleted": true})
		writeJSON(w, map[string]any{"ok": true})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- Tasks ---

func (a *App) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := a.Store.ListTasks(r.Context(), r.URL.Query().Get("status"), queryLimit(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, tasks)
	case http.MethodPost:
		var body struct {
			Title         string  `json:"title"`
			AssignedAgent *string `json:"assigned_agent"`
			SessionID     *string `json:"session_id"`
			Route         bool    `json:"route"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Route && body.AssignedAgent == nil {
			decision, err := a.route(r, body.Title)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			if decision.AgentID != "" {
				body.AssignedAgent = &decision.AgentID
			}
		}
		id, err := a.Store.CreateTask(r.Context(), body.Title, body.AssignedAgent, body.SessionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		a.Hub.PublishJSON(map[string]any{"type": "task_update", "task_id": id})
		task, err := a.Store.GetTask(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, task)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTaskImport bulk-creates tasks from a backlog, routing each title to an agent.
func (a *App) handleTaskImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Titles []string `json:"titles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(body.Titles) == 0 {
		writeJSONError(w, http.StatusBadRequest, "titles required")
		return
	}
	var created []models.Task
	for _, title := range body.Titles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		decision, err := a.route(r, title)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		var assigned *string
		if decision.AgentID != "" {
			assigned = &decision.AgentID
		}
		id, err := a.Store.CreateTask(r.Context(), title, assigned, nil)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		task, err := a.Store.GetTask(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		created = append(created, *task)
	}
	a.Hub.PublishJSON(map[string]any{"type": "task_update", "imported": len(created)})
	writeJSON(w, map[string]any{"imported": len(created), "tasks": created})
}

func (a *App) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/tasks/")
	taskID, ok := parseID(rest)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	switch r.Method {
	case http.MethodGet:
		task, err := a.Store.GetTask(r.Context(), taskID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, task)
	case http.MethodPatch:
		var body struct {
			Status        *string `json:"status"`
			WhatDoing     *string `json:"what_doing"`
			AssignedAgent *string `json:"assigned_agent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Status != nil {
			if err := a.Store.UpdateTaskStatus(r.Context(), taskID, *body.Status); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		if body.WhatDoing != nil {
			if err := a.Store.UpdateTaskProgress(r.Context(), taskID, *body.WhatDoing); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		if body.AssignedAgent != nil {
			if err := a.Store.AssignTask(r.Context(), taskID, body.AssignedAgent); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		task, err := a.Store.GetTask(r.Context(), taskID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		a.Hub.PublishJSON(map[string]any{"type": "task_update", "task_id": taskID, "status": task.Status})
		writeJSON(w, task)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- Intel ---

func (a *App) handleIntel(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		unread := r.URL.Query().Get("unread") == "true"
		items, err := a.Store.ListIntel(r.Context(), r.URL.Query().Get("category"), unread, queryLimit(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, items)
	case http.MethodPost:
		var item models.IntelItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		id, err := a.Store.AppendIntel(r.Context(), item)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		a.Hub.PublishJSON(map[string]any{"type": "intel_update", "intel_id": id})
		writeJSON(w, map[string]any{"intel_id": id})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleIntelRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	res, err := a.Orchestrator.RefreshIntel(r.Context(), force)
	if err != nil {
		otel.RecordRefresh(r.Context(), "failed")
		writeDomainError(w, err)
		return
	}
	if res.Skipped {
		otel.RecordRefresh(r.Context(), "skipped")
	} else {
		otel.RecordRefresh(r.Context(), "run")
		a.Hub.PublishJSON(map[string]any{"type": "intel_update", "collected": res.Collected, "generated": res.Generated})
	}
	writeJSON(w, res)
}

// --- Suggestions ---

func (a *App) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		suggestions, err := a.Store.ListSuggestions(r.Context(), r.URL.Query().Get("status"), queryLimit(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, suggestions)
	case http.MethodPost:
		var sg models.Suggestion
		if err := json.NewDecoder(r.Body).Decode(&sg); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		id, err := a.Store.CreateSuggestion(r.Context(), sg)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		otel.RecordSuggestionOp(r.Context(), "create", models.SuggestionPending)
		a.Hub.PublishJSON(map[string]any{"type": "suggestion_update", "suggestion_id": id})
		created, err := a.Store.GetSuggestion(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, created)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleSuggestionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/suggestions/")

	if rest == "generate" {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		n, err := a.Orchestrator.Generator.Generate(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if n > 0 {
			a.Hub.PublishJSON(map[string]any{"type": "suggestion_update", "generated": n})
		}
		writeJSON(w, map[string]any{"generated": n})
		return
	}

	parts := strings.Split(rest, "/")
	suggestionID, ok := parseID(parts[0])
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid suggestion id")
		return
	}

	if len(parts) >= 2 && parts[1] != "" {
		switch parts[1] {
		case "transition":
			if r.Method != http.MethodPost {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			var body struct {
				To string `json:"to"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			sg, err := a.Store.TransitionSuggestion(r.Context(), suggestionID, body.To)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			otel.RecordSuggestionOp(r.Context(), "transition", sg.Status)
			a.Hub.PublishJSON(map[string]any{"type": "suggestion_update", "suggestion_id": suggestionID, "status": sg.Status})
			writeJSON(w, sg)
		case "issue":
			if r.Method != http.MethodPost {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			sg, err := a.Sink.FileIssue(r.Context(), suggestionID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			a.Hub.PublishJSON(map[string]any{"type": "suggestion_update", "suggestion_id": suggestionID})
			writeJSON(w, sg)
		default:
			writeJSONError(w, http.StatusNotFound, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		sg, err := a.Store.GetSuggestion(r.Context(), suggestionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, sg)
	case http.MethodPatch:
		var body struct {
			Notes    *string `json:"notes"`
			Priority *int    `json:"priority"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := a.Store.UpdateSuggestionFields(r.Context(), suggestionID, body.Notes, body.Priority); err != nil {
			writeDomainError(w, err)
			return
		}
		otel.RecordSuggestionOp(r.Context(), "edit", "")
		sg, err := a.Store.GetSuggestion(r.Context(), suggestionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		a.Hub.PublishJSON(map[string]any{"type": "suggestion_update", "suggestion_id": suggestionID})
		writeJSON(w, sg)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- Overnight ---

func (a *App) handleOvernightStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := a.Orchestrator.Status(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status)
}

func (a *App) handleOvernightStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	run, err := a.Orchestrator.Start(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	a.Hub.PublishJSON(map[string]any{"type": "overnight_update", "run_id": run.RunID, "status": run.Status})
	writeJSON(w, run)
}

func (a *App) handleOvernightStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		RunID int64 `json:"run_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	run, err := a.Orchestrator.Stop(r.Context(), body.RunID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if run != nil {
		if run.CompletedAt != nil {
			otel.RecordRunDuration(r.Context(), run.Status, run.CompletedAt.Sub(run.StartedAt))
		}
		a.Hub.PublishJSON(map[string]any{"type": "overnight_update", "run_id": run.RunID, "status": run.Status})
		writeJSON(w, run)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "active_run": nil})
}

func (a *App) handleOvernightComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		RunID          int64  `json:"run_id"`
		TasksStarted   int    `json:"tasks_started"`
		TasksCompleted int    `json:"tasks_completed"`
		Summary        string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	run, err := a.Orchestrator.Complete(r.Context(), body.RunID, body.TasksStarted, body.TasksCompleted, body.Summary)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if run == nil {
		writeJSON(w, map[string]any{"ok": true, "active_run": nil})
		return
	}
	if run.CompletedAt != nil {
		otel.RecordRunDuration(r.Context(), run.Status, run.CompletedAt.Sub(run.StartedAt))
	}
	a.Hub.PublishJSON(map[string]any{"type": "overnight_update", "run_id": run.RunID, "status": run.Status})
	writeJSON(w, run)
}

func (a *App) handleOvernightRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runs, err := a.Store.ListRuns(r.Context(), queryLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, runs)
}

// --- Reports ---

func (a *App) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		reports, err := a.Store.ListReports(r.Context(), queryLimit(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, reports)
	case http.MethodPost:
		var rep models.Report
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		created, err := a.Sink.Create(r.Context(), rep)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		a.Hub.PublishJSON(map[string]any{"type": "report_update", "report_id": created.ReportID})
		writeJSON(w, created)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	reportID, ok := parseID(strings.TrimPrefix(r.URL.Path, "/reports/"))
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	rep, err := a.Store.GetReport(r.Context(), reportID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, rep)
}
