package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/SLRReport/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func insertRun(t *testing.T, db *database.DB, integrity *string) string {
	t.Helper()
	s := &database.Snapshot{
		Run: database.Run{
			Label:          "Neuro-symbolic screening",
			TotalRetrieved: 12,
			AfterDedup:     10,
			Included:       4,
			Excluded:       6,
			Single:         4,
			Multi:          1,
			None:           1,
			TopK:           8,
			ResultJSON:     `{"total_excluded":6}`,
			ReportMarkdown: ptr("## Key figures\n\n- 6 excluded records analysed"),
			IntegrityError: integrity,
		},
		Categories: []database.RunCategory{
			{Category: "No codebase/implementation", Rank: 1, Count: 4, Percentage: 66.6667},
			{Category: "Off-topic", Rank: 2, Count: 2, Percentage: 33.3333},
		},
		Classifications: []database.Classification{
			{ArticleID: "rayyan-1", Title: "Logic Tensor Networks", Categories: []string{"No codebase/implementation"},
				RepositoryURL: ptr("https://github.com/logictensornetworks/ltn")},
			{ArticleID: "rayyan-2", Title: "Probabilistic Circuits", Categories: []string{"Off-topic"}},
		},
		Outcomes: []database.RunOutcome{{Outcome: "Missing Code", Count: 3, Percentage: 100}},
	}
	if integrity == nil {
		s.Run.ViewsJSON = ptr(`{"k":8,"rows":[]}`)
	}
	id, err := db.InsertRun(s)
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	return id
}

func newServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func get(srv *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	srv := newServer(t, db)

	rec := get(srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No runs yet") {
		t.Error("expected empty-state message")
	}

	id := insertRun(t, db, nil)
	rec = get(srv, "/")
	body := rec.Body.String()
	if !strings.Contains(body, "Neuro-symbolic screening") {
		t.Error("expected run label in index")
	}
	if !strings.Contains(body, "/run/"+id) {
		t.Error("expected link to run")
	}
	if !strings.Contains(body, database.ShortID(id)) {
		t.Error("expected short run id")
	}
}

func TestIndexUnknownPath(t *testing.T) {
	srv := newServer(t, openTestDB(t))
	if rec := get(srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRunRoute(t *testing.T) {
	db := openTestDB(t)
	id := insertRun(t, db, nil)
	srv := newServer(t, db)

	rec := get(srv, "/run/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Neuro-symbolic screening",
		"Duplicates removed",
		"66.7%",
		"Missing Code",
		"<h2>Key figures</h2>",
		"/api/runs/" + id + "/views",
		"/run/" + id + "/category?name=",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in run page", want)
		}
	}
	if strings.Contains(body, "Integrity check failed") {
		t.Error("did not expect an integrity alert")
	}
}

func TestRunRouteIntegrityError(t *testing.T) {
	db := openTestDB(t)
	id := insertRun(t, db, ptr("top 8 categories sum to more than the excluded total"))
	srv := newServer(t, db)

	body := get(srv, "/run/"+id).Body.String()
	if !strings.Contains(body, "Integrity check failed") {
		t.Error("expected integrity alert")
	}
	if strings.Contains(body, "/api/runs/"+id+"/views") {
		t.Error("did not expect a views link")
	}

	rec := get(srv, "/api/runs/"+id+"/views")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestRunRouteMissing(t *testing.T) {
	srv := newServer(t, openTestDB(t))
	if rec := get(srv, "/run/does-not-exist"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := get(srv, "/run/"); rec.Code != http.StatusFound {
		t.Errorf("expected redirect, got %d", rec.Code)
	}
}

func TestCategoryRoute(t *testing.T) {
	db := openTestDB(t)
	id := insertRun(t, db, nil)
	srv := newServer(t, db)

	rec := get(srv, "/run/"+id+"/category?name="+url.QueryEscape("No codebase/implementation"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Logic Tensor Networks") {
		t.Error("expected article in category")
	}
	if strings.Contains(body, "Probabilistic Circuits") {
		t.Error("did not expect article from another category")
	}
	if !strings.Contains(body, "https://github.com/logictensornetworks/ltn") {
		t.Error("expected repository link")
	}

	if rec := get(srv, "/run/"+id+"/category"); rec.Code != http.StatusFound {
		t.Errorf("expected redirect without name, got %d", rec.Code)
	}
}

func TestDeleteRoute(t *testing.T) {
	db := openTestDB(t)
	id := insertRun(t, db, nil)
	srv := newServer(t, db)

	// GET does not delete.
	if rec := get(srv, "/run/"+id+"/delete"); rec.Code != http.StatusFound {
		t.Errorf("expected redirect, got %d", rec.Code)
	}
	if run, _ := db.GetRun(id); run == nil {
		t.Fatal("expected run to survive GET")
	}

	req := httptest.NewRequest("POST", "/run/"+id+"/delete", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
	if run, _ := db.GetRun(id); run != nil {
		t.Error("expected run to be deleted")
	}
}

func TestAPIRoute(t *testing.T) {
	db := openTestDB(t)
	id := insertRun(t, db, nil)
	srv := newServer(t, db)

	rec := get(srv, "/api/runs/"+id+"/views")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if rec.Body.String() != `{"k":8,"rows":[]}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	rec = get(srv, "/api/runs/"+id+"/result")
	if rec.Body.String() != `{"total_excluded":6}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	if rec := get(srv, "/api/runs/"+id+"/other"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := get(srv, "/api/runs/missing/views"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	rec := get(srv, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-sans") {
		t.Error("expected CSS content")
	}
}
