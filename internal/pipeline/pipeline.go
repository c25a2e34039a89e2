package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/SLRReport/internal/aggregate"
	"github.com/TobiSchelling/SLRReport/internal/collect"
	"github.com/TobiSchelling/SLRReport/internal/config"
	"github.com/TobiSchelling/SLRReport/internal/database"
	"github.com/TobiSchelling/SLRReport/internal/enrich"
	"github.com/TobiSchelling/SLRReport/internal/projection"
	"github.com/TobiSchelling/SLRReport/internal/records"
	"github.com/TobiSchelling/SLRReport/internal/report"
)

// Assembled record sets written next to the report.
const (
	IncludeFile    = "include.json"
	ExcludeFile    = "exclude.json"
	CandidatesFile = "candidates.json"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID string
	Steps []StepResult
	// Report is the rendered report data. Nil when loading failed.
	Report *report.Data
	Files  []string
}

// Failed reports whether any step returned an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Options tune a single run.
type Options struct {
	Label string
	// OutputDir overrides <data dir>/reports/<run id>.
	OutputDir string
}

// Pipeline orchestrates the load, enrich, aggregate, project, render and
// archive steps of an analysis run.
type Pipeline struct {
	cfg    *config.Config
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// New creates a new pipeline. db may be nil, in which case runs are not
// archived.
func New(cfg *config.Config, db *database.DB, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, db: db, logger: logger, now: time.Now}
}

// state carries intermediate values between steps.
type state struct {
	included []records.Article
	excluded []records.Article
	overview []byte
	result   *aggregate.Result
	outcomes *aggregate.Breakdown
	views    *projection.Views
	projErr  error
	data     *report.Data
}

// Run executes the full pipeline. Loading and enrichment failures stop the
// run; an integrity failure in the projection is reported and the run is
// still rendered and archived with the error attached.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	r := &Result{RunID: uuid.NewString()}
	st := &state{}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Join(p.cfg.GetDataDir(), "reports", r.RunID)
	}
	label := opts.Label
	if label == "" {
		label = database.DefaultLabel(p.now())
	}

	step := p.runLoad(ctx, st)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = p.runEnrich(st)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	r.Steps = append(r.Steps, p.runAggregate(st))

	step = p.runProject(st)
	r.Steps = append(r.Steps, step)
	if step.Err != nil && !isIntegrity(step.Err) {
		return r
	}

	step, files := p.runRender(st, label, outDir)
	r.Steps = append(r.Steps, step)
	r.Report = st.data
	r.Files = files

	r.Steps = append(r.Steps, p.runArchive(st, r.RunID, label))
	return r
}

// DryRun shows which inputs a run would read without executing it.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}
	in := p.cfg.Inputs

	if in.IncludeJSON != "" || in.ExcludeJSON != "" {
		r.Steps = append(r.Steps, StepResult{
			Name: "Load",
			Summary: fmt.Sprintf("[dry-run] record sets %s (%s), %s (%s)",
				p.cfg.InputPath(in.IncludeJSON), presence(p.cfg.InputPath(in.IncludeJSON)),
				p.cfg.InputPath(in.ExcludeJSON), presence(p.cfg.InputPath(in.ExcludeJSON))),
		})
	} else {
		found := 0
		folders := append(append([]string(nil), in.IncludeFolders...), in.ExcludeFolders...)
		for _, f := range folders {
			if exists(filepath.Join(in.DataDir, f)) {
				found++
			}
		}
		r.Steps = append(r.Steps, StepResult{
			Name:    "Load",
			Summary: fmt.Sprintf("[dry-run] %d of %d export folders present under %s", found, len(folders), in.DataDir),
		})
	}

	r.Steps = append(r.Steps,
		StepResult{Name: "Enrich", Summary: fmt.Sprintf("[dry-run] cross-reference sheets %s (%s)",
			p.cfg.InputPath(in.ClusterLinks), presence(p.cfg.InputPath(in.ClusterLinks)))},
		StepResult{Name: "Aggregate", Summary: fmt.Sprintf("[dry-run] %d category folds configured", len(p.cfg.Screening.Folds))},
		StepResult{Name: "Project", Summary: fmt.Sprintf("[dry-run] top %d categories against overview %s (%s)",
			p.cfg.Screening.TopK, p.cfg.InputPath(in.Overview), presence(p.cfg.InputPath(in.Overview)))},
	)

	r.Steps = append(r.Steps, StepResult{
		Name:    "Render",
		Summary: "[dry-run] would write the report under " + filepath.Join(p.cfg.GetDataDir(), "reports"),
	})

	archive := "[dry-run] archive disabled"
	if p.db != nil {
		archive = "[dry-run] would archive to " + p.db.Path()
	}
	r.Steps = append(r.Steps, StepResult{Name: "Archive", Summary: archive})
	return r
}

// Import parses the configured feed exports and writes the entries that are
// not already in the record sets to <data dir>/candidates.json.
func (p *Pipeline) Import(ctx context.Context) (*collect.Result, string, error) {
	st := &state{}
	if step := p.runLoad(ctx, st); step.Err != nil {
		return nil, "", step.Err
	}
	known := append(append([]records.Article(nil), st.included...), st.excluded...)

	feeds := make([]collect.FeedConfig, 0, len(p.cfg.Inputs.Feeds))
	for _, f := range p.cfg.Inputs.Feeds {
		feeds = append(feeds, collect.FeedConfig{Path: p.cfg.InputPath(f.Path), Name: f.Name})
	}
	res := collect.NewCollector(feeds, p.cfg.Screening.IDPrefix, p.logger).Collect(known)

	path := filepath.Join(p.cfg.GetDataDir(), CandidatesFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, "", fmt.Errorf("creating data dir: %w", err)
	}
	if err := records.Save(path, res.Articles); err != nil {
		return res, "", err
	}
	return res, path, nil
}

func (p *Pipeline) runLoad(ctx context.Context, st *state) StepResult {
	p.logger.Info("Step 1/6: Loading record sets...")
	in := p.cfg.Inputs
	prefix := p.cfg.Screening.IDPrefix

	g, ctx := errgroup.WithContext(ctx)
	if in.IncludeJSON != "" || in.ExcludeJSON != "" {
		g.Go(func() error {
			var err error
			st.included, err = loadJSON(p.cfg.InputPath(in.IncludeJSON))
			return err
		})
		g.Go(func() error {
			var err error
			st.excluded, err = loadJSON(p.cfg.InputPath(in.ExcludeJSON))
			return err
		})
	} else {
		loader := records.NewFolderLoader(in.DataDir, prefix, p.logger)
		g.Go(func() error {
			var err error
			st.included, err = loader.LoadFolders(ctx, in.IncludeFolders)
			return err
		})
		g.Go(func() error {
			var err error
			st.excluded, err = loader.LoadFolders(ctx, in.ExcludeFolders)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return StepResult{Name: "Load", Err: fmt.Errorf("loading record sets: %w", err)}
	}

	st.included = records.Dedupe(st.included, prefix)
	st.excluded = records.Dedupe(st.excluded, prefix)
	return StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("Loaded %d included and %d excluded records", len(st.included), len(st.excluded)),
	}
}

func loadJSON(path string) ([]records.Article, error) {
	if path == "" {
		return nil, nil
	}
	return records.Load(path)
}

func (p *Pipeline) runEnrich(st *state) StepResult {
	p.logger.Info("Step 2/6: Backfilling links from cross-reference sheets...")
	path := p.cfg.InputPath(p.cfg.Inputs.ClusterLinks)

	var ref *enrich.CrossRef
	if path != "" && exists(path) {
		sheets, err := enrich.LoadSheets(path)
		if err != nil {
			return StepResult{Name: "Enrich", Err: err}
		}
		ref = enrich.NewCrossRef(sheets, p.cfg.Screening.IDPrefix)
	} else if path != "" {
		p.logger.Warn("cross-reference sheets not found", zap.String("path", path))
	}

	e := enrich.New(ref, p.logger)
	var inStats, exStats enrich.Stats
	st.included, inStats = e.Backfill(st.included)
	st.excluded, exStats = e.Backfill(st.excluded)

	rows := 0
	if ref != nil {
		rows = ref.Len()
	}
	return StepResult{
		Name: "Enrich",
		Summary: fmt.Sprintf("Matched %d of %d records against %d sheet rows; added %d URLs and %d repository links",
			inStats.Matched+exStats.Matched, len(st.included)+len(st.excluded), rows,
			inStats.URLs+exStats.URLs, inStats.Repositories+exStats.Repositories),
	}
}

func (p *Pipeline) runAggregate(st *state) StepResult {
	p.logger.Info("Step 3/6: Aggregating exclusion criteria...")
	st.result = aggregate.New(p.logger).Aggregate(st.excluded)
	if len(p.cfg.Screening.Folds) > 0 {
		st.result = st.result.Fold(p.cfg.Screening.Folds)
	}

	all := append(append([]records.Article(nil), st.included...), st.excluded...)
	st.outcomes = aggregate.Outcomes(all)

	return StepResult{
		Name: "Aggregate",
		Summary: fmt.Sprintf("%d excluded records: %d single, %d multiple, %d without criteria; %d categories, %d unknown codes",
			st.result.Total, st.result.Single, st.result.Multi, st.result.None,
			len(st.result.Criteria), len(st.result.UnknownCodes)),
	}
}

func (p *Pipeline) runProject(st *state) StepResult {
	p.logger.Info("Step 4/6: Projecting table, chart and flow views...")

	overview, err := p.loadOverview(st)
	if err != nil {
		return StepResult{Name: "Project", Err: err}
	}

	views, err := projection.Project(st.result, overview, p.cfg.Screening.TopK)
	if err == nil {
		err = views.Verify()
	}
	if err != nil {
		st.projErr = err
		p.logger.Error("projection failed", zap.Error(err))
		return StepResult{Name: "Project", Err: err}
	}
	st.views = views
	return StepResult{
		Name: "Project",
		Summary: fmt.Sprintf("Top %d of %d categories; %d records under %q",
			len(views.Rows)-1, len(st.result.Criteria), views.Rows[len(views.Rows)-1].Count, projection.NodeRemainder),
	}
}

func (p *Pipeline) loadOverview(st *state) (projection.Overview, error) {
	path := p.cfg.InputPath(p.cfg.Inputs.Overview)
	if path == "" || !exists(path) {
		if path != "" {
			p.logger.Warn("screening overview not found, deriving totals from record sets", zap.String("path", path))
		}
		return projection.DeriveOverview(len(st.included), st.result), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return projection.Overview{}, fmt.Errorf("reading overview: %w", err)
	}
	o, err := projection.ParseOverview(data)
	if err != nil {
		return projection.Overview{}, fmt.Errorf("parsing overview %s: %w", path, errors.Join(records.ErrMalformed, err))
	}
	st.overview = data
	return o, nil
}

func (p *Pipeline) runRender(st *state, label, outDir string) (StepResult, []string) {
	p.logger.Info("Step 5/6: Rendering report...")
	st.data = &report.Data{
		Title:    label,
		Result:   st.result,
		Views:    st.views,
		Outcomes: st.outcomes,
		Excluded: st.excluded,
		Err:      st.projErr,
	}

	w := report.NewWriter(outDir, p.logger)
	files, err := w.WriteAll(st.data, st.overview)
	if err != nil {
		return StepResult{Name: "Render", Err: err}, files
	}
	for _, set := range []struct {
		name     string
		articles []records.Article
	}{{IncludeFile, st.included}, {ExcludeFile, st.excluded}} {
		path := filepath.Join(outDir, set.name)
		if err := records.Save(path, set.articles); err != nil {
			return StepResult{Name: "Render", Err: err}, files
		}
		files = append(files, path)
	}
	return StepResult{
		Name:    "Render",
		Summary: fmt.Sprintf("Wrote %d files to %s", len(files), outDir),
	}, files
}

func (p *Pipeline) runArchive(st *state, runID, label string) StepResult {
	p.logger.Info("Step 6/6: Archiving run...")
	if p.db == nil {
		return StepResult{Name: "Archive", Summary: "Archive disabled"}
	}

	snap, err := snapshot(st, runID, label)
	if err != nil {
		return StepResult{Name: "Archive", Err: err}
	}
	if _, err := p.db.InsertRun(snap); err != nil {
		return StepResult{Name: "Archive", Err: err}
	}
	return StepResult{
		Name:    "Archive",
		Summary: fmt.Sprintf("Archived run %s with %d classified records", database.ShortID(runID), len(snap.Classifications)),
	}
}

func snapshot(st *state, runID, label string) (*database.Snapshot, error) {
	res := st.result
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	run := database.Run{
		ID:         runID,
		Label:      label,
		Excluded:   res.Total,
		Single:     res.Single,
		Multi:      res.Multi,
		None:       res.None,
		ResultJSON: string(resultJSON),
	}
	if st.data != nil {
		md := report.Markdown(st.data)
		run.ReportMarkdown = &md
	}
	if st.projErr != nil {
		msg := st.projErr.Error()
		run.IntegrityError = &msg
	}

	s := &database.Snapshot{}
	if v := st.views; v != nil {
		viewsJSON, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding views: %w", err)
		}
		vj := string(viewsJSON)
		run.ViewsJSON = &vj
		run.TotalRetrieved = v.Overview.TotalRetrieved
		run.AfterDedup = v.Overview.AfterDedup
		run.Included = v.Overview.Included
		run.Excluded = v.Overview.Excluded
		run.TopK = v.K
	}
	for i, rk := range res.Ranked() {
		s.Categories = append(s.Categories, database.RunCategory{
			Category: rk.Category, Rank: i + 1, Count: rk.Count, Percentage: rk.Percentage,
		})
	}
	for _, rk := range st.outcomes.Ranked() {
		s.Outcomes = append(s.Outcomes, database.RunOutcome{Outcome: rk.Category, Count: rk.Count, Percentage: rk.Percentage})
	}

	filtered := make(map[string]bool, len(res.FilteredReproduced))
	for _, id := range res.FilteredReproduced {
		filtered[id] = true
	}
	folds := foldIndex(res)
	for _, a := range st.excluded {
		if filtered[a.ArticleID] {
			continue
		}
		c := database.Classification{ArticleID: a.ArticleID, Title: a.Title, Categories: folds[a.ArticleID]}
		if c.Categories == nil {
			c.Categories = []string{}
		}
		if o := aggregate.Outcome(a); o != "" {
			c.Outcome = &o
		}
		if a.RepositoryURL != "" {
			repo := a.RepositoryURL
			c.RepositoryURL = &repo
		}
		s.Classifications = append(s.Classifications, c)
	}

	s.Run = run
	return s, nil
}

// foldIndex inverts the result groups into article id -> sorted categories,
// so archived classifications reflect configured folds.
func foldIndex(res *aggregate.Result) map[string][]string {
	idx := make(map[string][]string)
	for c, ids := range res.Groups {
		for _, id := range ids {
			idx[id] = append(idx[id], c)
		}
	}
	for _, cats := range idx {
		sort.Strings(cats)
	}
	return idx
}

func isIntegrity(err error) bool {
	var ie *projection.IntegrityError
	return errors.As(err, &ie)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func presence(path string) string {
	if path == "" {
		return "not configured"
	}
	if exists(path) {
		return "present"
	}
	return "missing"
}
