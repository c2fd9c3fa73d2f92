package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/intel"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/overnight"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/porter"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/report"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store/postgres"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/suggest"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

// defaultMaxRequestBodyBytes is the default limit for request body size (1 MiB) to prevent OOM.
const defaultMaxRequestBodyBytes = 1 << 20

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (dashboard dev server on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, API key, DB, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string       // if set, require X-API-Key header or query api_key
	DBDriver       string       // "sqlite" (default) or "postgres"
	DBURL          string       // for postgres: connection string (or set DATABASE_URL env)
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
}

// App holds the HTTP server, SSE hub, store, and the domain services behind the routes.
type App struct {
	Server       *http.Server
	Hub          *SSEHub
	Store        store.Store
	Router       *porter.Router
	Orchestrator *overnight.Orchestrator
	Sink         *report.Sink
	Home         string
}

// NewApp creates the HTTP app (server, hub, store, services) and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()

	var st store.Store
	var err error
	if opts.DBDriver == "postgres" {
		st, err = postgres.Open(opts.DBURL)
	} else {
		st, err = store.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}
	_ = st.SeedDefaults(context.Background())

	var tracker report.Tracker
	if u := os.Getenv("SUPERCLAW_TRACKER_URL"); u != "" {
		tracker = report.HTTPTracker{BaseURL: u, Token: os.Getenv("SUPERCLAW_TRACKER_TOKEN")}
	} else if u := os.Getenv("SLACK_WEBHOOK_URL"); u != "" {
		tracker = report.SlackNotifier{WebhookURL: u}
	}

	collector := &intel.Collector{
		Store:   st,
		Sources: intel.SourcesFromEnv(os.Getenv("SUPERCLAW_INTEL_FEEDS")),
	}
	generator := &suggest.Generator{Store: st}
	orch := &overnight.Orchestrator{Store: st, Collector: collector, Generator: generator}
	sink := &report.Sink{Store: st, Tracker: tracker}

	app := &App{
		Hub:          hub,
		Store:        st,
		Router:       porter.New(fallbackAgentID(st)),
		Orchestrator: orch,
		Sink:         sink,
		Home:         opts.Home,
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			counts, _ := st.CountSuggestionsByStatus(r.Context())
			_, _ = fmt.Fprintf(w, "# TYPE superclaw_suggestions_total gauge\n")
			for _, status := range []string{
				models.SuggestionPending, models.SuggestionApproved, models.SuggestionQueued,
				models.SuggestionInProgress, models.SuggestionCompleted, models.SuggestionDismissed,
			} {
				_, _ = fmt.Fprintf(w, "superclaw_suggestions_total{status=%q} %d\n", status, counts[status])
			}
		})
	}

	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"home":         opts.Home,
			"bootstrap_id": getBootstrapID(opts.Home),
		})
	})

	mux.HandleFunc("/bootstrap", app.handleBootstrap)
	mux.HandleFunc("/stream", hub.Handler())
	mux.HandleFunc("/route", app.handleRoute)

	mux.HandleFunc("/agents", app.handleAgents)
	mux.HandleFunc("/agents/", app.handleAgentByID)
	mux.HandleFunc("/tasks", app.handleTasks)
	mux.HandleFunc("/tasks/import", app.handleTaskImport)
	mux.HandleFunc("/tasks/", app.handleTaskByID)
	mux.HandleFunc("/intel", app.handleIntel)
	mux.HandleFunc("/intel/refresh", app.handleIntelRefresh)
	mux.HandleFunc("/suggestions", app.handleSuggestions)
	mux.HandleFunc("/suggestions/", app.handleSuggestionByID)
	mux.HandleFunc("/overnight", app.handleOvernightStatus)
	mux.HandleFunc("/overnight/start", app.handleOvernightStart)
	mux.HandleFunc("/overnight/stop", app.handleOvernightStop)
	mux.HandleFunc("/overnight/complete", app.handleOvernightComplete)
	mux.HandleFunc("/overnight/runs", app.handleOvernightRuns)
	mux.HandleFunc("/reports", app.handleReports)
	mux.HandleFunc("/reports/", app.handleReportByID)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "superclaw")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		_ = st.Close()
	})
	app.Server = srv
	return app, nil
}

// fallbackAgentID finds the orchestrator to use as routing fallback.
func fallbackAgentID(st store.Store) string {
	agents, err := st.ListAgents(context.Background())
	if err != nil {
		return ""
	}
	for _, a := range agents {
		if a.IsOrchestrator {
			return a.AgentID
		}
	}
	return ""
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func getBootstrapID(home string) string {
	protected := filepath.Join(home, "protected")
	_ = os.MkdirAll(protected, 0o755)
	path := filepath.Join(protected, "bootstrap_id")
	if b, err := os.ReadFile(path); err == nil {
		if s := string(bytesTrimSpace(b)); s != "" {
			return s
		}
	}
	id := randomHex(16)
	_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
	return id
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// fallback: time-based
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

func bytesTrimSpace(b []byte) []byte {
	i := 0
	j := len(b)
	for i < j && (b[i] == ' ' || b[i] == '\n' || b[i] == '\r' || b[i] == '\t') {
		i++
	}
	for j > i && (b[j-1] == ' ' || b[j-1] == '\n' || b[j-1] == '\r' || b[j-1] == '\t') {
		j--
	}
	return b[i:j]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

// writeDomainError maps store and lifecycle errors onto HTTP status codes:
// missing rows are 404, state conflicts are 409, everything else is a 400.
func writeDomainError(w http.ResponseWriter, err error) {
	var protected *store.ProtectedAgentError
	var illegal *store.IllegalTransitionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrRunAlreadyActive),
		errors.Is(err, overnight.ErrNoQueuedWork),
		errors.As(err, &protected),
		errors.As(err, &illegal):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	}
}
