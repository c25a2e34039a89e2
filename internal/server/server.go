package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/SLRReport/internal/database"
	"github.com/TobiSchelling/SLRReport/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Server is the HTTP viewer for archived runs.
type Server struct {
	db     *database.DB
	logger *zap.Logger
	pages  map[string]*template.Template
	mux    *http.ServeMux
}

// New creates a new Server. A nil logger discards output.
func New(db *database.DB, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	funcMap := template.FuncMap{
		"markdown":        renderMarkdown,
		"formatTimestamp": database.FormatTimestamp,
		"shortID":         database.ShortID,
		"percent": func(p float64) string {
			return fmt.Sprintf("%.1f%%", p)
		},
		"deref": deref,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so that "title" and "content"
	// definitions do not collide.
	pageNames := []string{"index.html", "run.html", "category.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, logger: logger, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/run/", s.handleRun)
	s.mux.HandleFunc("/api/runs/", s.handleAPI)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	runs, err := s.db.ListRuns(0)
	if err != nil {
		s.serverError(w, "listing runs", err)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		s.serverError(w, "reading stats", err)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Runs":  runs,
		"Stats": stats,
	})
}

// handleRun serves /run/{id}, /run/{id}/category?name=... and
// POST /run/{id}/delete.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/run/"), "/")
	if path == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]

	run, err := s.db.GetRun(id)
	if err != nil {
		s.serverError(w, "loading run", err)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		s.renderRun(w, run)
		return
	}

	switch parts[1] {
	case "category":
		s.renderCategory(w, r, run)
	case "delete":
		if r.Method != http.MethodPost {
			http.Redirect(w, r, "/run/"+id, http.StatusFound)
			return
		}
		if err := s.db.DeleteRun(id); err != nil {
			s.serverError(w, "deleting run", err)
			return
		}
		s.logger.Info("deleted run", zap.String("run_id", id))
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) renderRun(w http.ResponseWriter, run *database.Run) {
	cats, err := s.db.GetRunCategories(run.ID)
	if err != nil {
		s.serverError(w, "loading categories", err)
		return
	}
	outcomes, err := s.db.GetRunOutcomes(run.ID)
	if err != nil {
		s.serverError(w, "loading outcomes", err)
		return
	}

	s.render(w, "run.html", map[string]any{
		"Run":        run,
		"Duplicates": run.TotalRetrieved - run.AfterDedup,
		"Categories": cats,
		"Outcomes":   outcomes,
	})
}

func (s *Server) renderCategory(w http.ResponseWriter, r *http.Request, run *database.Run) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Redirect(w, r, "/run/"+run.ID, http.StatusFound)
		return
	}

	articles, err := s.db.GetClassifications(run.ID, name)
	if err != nil {
		s.serverError(w, "loading classifications", err)
		return
	}

	s.render(w, "category.html", map[string]any{
		"Run":      run,
		"Category": name,
		"Articles": articles,
	})
}

// handleAPI serves /api/runs/{id}/views and /api/runs/{id}/result.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	run, err := s.db.GetRun(parts[0])
	if err != nil {
		s.serverError(w, "loading run", err)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	var body string
	switch parts[1] {
	case "views":
		if run.ViewsJSON == nil {
			http.Error(w, "run has no views: "+deref(run.IntegrityError), http.StatusConflict)
			return
		}
		body = *run.ViewsJSON
	case "result":
		body = run.ResultJSON
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", zap.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("rendering template", zap.String("template", name), zap.Error(err))
	}
}

func (s *Server) serverError(w http.ResponseWriter, action string, err error) {
	s.logger.Error(action, zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func renderMarkdown(text string) template.HTML {
	html, err := report.RenderMarkdown(text)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return html
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int, logger *zap.Logger) error {
	srv, err := New(db, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv.logger.Info("server listening", zap.String("url", "http://"+addr))
	return http.ListenAndServe(addr, srv.Handler())
}
