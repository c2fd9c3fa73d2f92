package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func makeSuggestion(t *testing.T, st store.Store, through ...string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := st.CreateSuggestion(ctx, models.Suggestion{
		Title: "Write the audit", Why: "testing", Effort: models.LevelLow, Impact: models.LevelMedium,
	})
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}
	for _, status := range through {
		if _, err := st.TransitionSuggestion(ctx, id, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
	return id
}

func TestCreateReportCompletesSuggestion(t *testing.T) {
	st := openTestStore(t)
	sink := &Sink{Store: st}
	ctx := context.Background()

	sgID := makeSuggestion(t, st, models.SuggestionApproved, models.SuggestionQueued, models.SuggestionInProgress)
	r, err := sink.Create(ctx, models.Report{
		Title: "Audit results", Type: models.ReportTypeSuggestion, Content: "all good", SuggestionID: &sgID,
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	sg, err := st.GetSuggestion(ctx, sgID)
	if err != nil {
		t.Fatalf("get suggestion: %v", err)
	}
	if sg.Status != models.SuggestionCompleted {
		t.Fatalf("suggestion status = %q, want completed", sg.Status)
	}
	if sg.ReportID == nil || *sg.ReportID != r.ReportID {
		t.Fatalf("suggestion report_id = %v, want %d", sg.ReportID, r.ReportID)
	}
}

func TestCreateReportAdvancesQueuedSuggestion(t *testing.T) {
	st := openTestStore(t)
	sink := &Sink{Store: st}
	ctx := context.Background()

	sgID := makeSuggestion(t, st, models.SuggestionApproved, models.SuggestionQueued)
	if _, err := sink.Create(ctx, models.Report{
		Title: "Early finish", Type: models.ReportTypeManual, SuggestionID: &sgID,
	}); err != nil {
		t.Fatalf("create report: %v", err)
	}
	sg, _ := st.GetSuggestion(ctx, sgID)
	if sg.Status != models.SuggestionCompleted {
		t.Fatalf("queued suggestion ended as %q, want completed", sg.Status)
	}
}

func TestCreateReportRejectsPendingSuggestion(t *testing.T) {
	st := openTestStore(t)
	sink := &Sink{Store: st}
	ctx := context.Background()

	sgID := makeSuggestion(t, st) // still pending
	_, err := sink.Create(ctx, models.Report{
		Title: "Too early", Type: models.ReportTypeManual, SuggestionID: &sgID,
	})
	var illegal *store.IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("got %v, want IllegalTransitionError", err)
	}

	// the failed completion must not leave a report row or move the suggestion
	reports, err := st.ListReports(ctx, 0)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("reports after failed create = %d, want 0", len(reports))
	}
	sg, err := st.GetSuggestion(ctx, sgID)
	if err != nil {
		t.Fatalf("get suggestion: %v", err)
	}
	if sg.Status != models.SuggestionPending || sg.ReportID != nil {
		t.Fatalf("suggestion after failed create = %+v, want untouched pending", sg)
	}
}

func TestCreateReportWithoutSuggestion(t *testing.T) {
	st := openTestStore(t)
	sink := &Sink{Store: st}

	r, err := sink.Create(context.Background(), models.Report{Title: "Nightly summary", Type: models.ReportTypeOvernight})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if r.SuggestionID != nil {
		t.Fatalf("suggestion id = %v, want nil", r.SuggestionID)
	}
}

type failingTracker struct{}

func (failingTracker) Name() string { return "failing" }
func (failingTracker) CreateIssue(context.Context, string, string) (Issue, error) {
	return Issue{}, errors.New("tracker down")
}
func (failingTracker) Notify(context.Context, string) error { return errors.New("tracker down") }

func TestTrackerFailuresAreAbsorbed(t *testing.T) {
	st := openTestStore(t)
	sink := &Sink{Store: st, Tracker: failingTracker{}}
	ctx := context.Background()

	if _, err := sink.Create(ctx, models.Report{Title: "R", Type: models.ReportTypeManual}); err != nil {
		t.Fatalf("create with failing tracker: %v", err)
	}

	sgID := makeSuggestion(t, st)
	sg, err := sink.FileIssue(ctx, sgID)
	if err != nil {
		t.Fatalf("file issue with failing tracker: %v", err)
	}
	if sg.IssueID != nil {
		t.Fatalf("issue fields set despite failure: %+v", sg)
	}
}

func TestHTTPTrackerCreateIssue(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/issues" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc123","identifier":"OPS-42","url":"https://tracker.example/OPS-42"}`))
	}))
	defer srv.Close()

	tr := HTTPTracker{BaseURL: srv.URL, Token: "secret"}
	issue, err := tr.CreateIssue(context.Background(), "Fix crawl budget", "details")
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	if issue.Identifier != "OPS-42" || issue.URL == "" {
		t.Fatalf("issue = %+v", issue)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
}

func TestFileIssueStampsSuggestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x1","identifier":"OPS-7","url":"https://tracker.example/OPS-7"}`))
	}))
	defer srv.Close()

	st := openTestStore(t)
	sink := &Sink{Store: st, Tracker: HTTPTracker{BaseURL: srv.URL}}
	sgID := makeSuggestion(t, st, models.SuggestionApproved)

	sg, err := sink.FileIssue(context.Background(), sgID)
	if err != nil {
		t.Fatalf("file issue: %v", err)
	}
	if sg.IssueIdentifier == nil || *sg.IssueIdentifier != "OPS-7" {
		t.Fatalf("issue identifier = %v", sg.IssueIdentifier)
	}
}
