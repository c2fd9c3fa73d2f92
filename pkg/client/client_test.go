package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:3841", "")
	if c.BaseURL != "http://localhost:3841" || c.APIKey != "" {
		t.Errorf("New: %+v", c)
	}
	c2 := New("http://localhost:3841", "secret")
	if c2.APIKey != "secret" {
		t.Errorf("New with key: %+v", c2)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ok, err := New(srv.URL, "").Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !ok {
		t.Fatal("Health: expected ok true")
	}
}

func TestHealthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "").Health(context.Background()); err == nil {
		t.Fatal("expected error from 503")
	}
}

func TestClientSetsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	_, _ = New(srv.URL, "mykey").Health(context.Background())
	if gotKey != "mykey" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
}

func TestOvernightStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/overnight" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"overnight_mode":true,"queued_count":4,"active_run":{"run_id":9,"status":"running"}}`))
	}))
	defer srv.Close()

	st, err := New(srv.URL, "").Overnight(context.Background())
	if err != nil {
		t.Fatalf("Overnight: %v", err)
	}
	if !st.OvernightMode || st.QueuedCount != 4 {
		t.Errorf("status: %+v", st)
	}
	if st.ActiveRun == nil || st.ActiveRun.RunID != 9 {
		t.Errorf("active run: %+v", st.ActiveRun)
	}
}

func TestRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/route" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"agent_id":"seo","score":14,"matched_rules":["search console"]}`))
	}))
	defer srv.Close()

	d, err := New(srv.URL, "").Route(context.Background(), "check search console coverage")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.AgentID != "seo" || d.Score != 14 {
		t.Errorf("decision: %+v", d)
	}
}

func TestTransitionSuggestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/suggestions/12/transition" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"suggestion_id":12,"status":"approved"}`))
	}))
	defer srv.Close()

	sg, err := New(srv.URL, "").TransitionSuggestion(context.Background(), 12, models.SuggestionApproved)
	if err != nil {
		t.Fatalf("TransitionSuggestion: %v", err)
	}
	if sg.SuggestionID != 12 || sg.Status != models.SuggestionApproved {
		t.Errorf("suggestion: %+v", sg)
	}
}
