package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/SLRReport/internal/category"
	"github.com/TobiSchelling/SLRReport/internal/config"
	"github.com/TobiSchelling/SLRReport/internal/database"
	"github.com/TobiSchelling/SLRReport/internal/projection"
	"github.com/TobiSchelling/SLRReport/internal/records"
	"github.com/TobiSchelling/SLRReport/internal/report"
)

const excludeJSON = `[
  {"article_id": "rayyan-1", "title": "Logic Tensor Networks",
   "customizations": [{"key": "\"__EXR__no-codebase\"", "value": "1"}]},
  {"article_id": "rayyan-2", "title": "Neural Module Networks",
   "customizations": [{"key": "__EXR__no-codebase", "value": "1"}, {"key": "__EXR__no-eval", "value": "1"}]},
  {"article_id": "rayyan-3", "title": "Graph Kernels",
   "customizations": [{"key": "__EXR__off-topic", "value": "1"}]},
  {"article_id": "rayyan-4", "title": "Unlabelled Paper", "customizations": []},
  {"article_id": "rayyan-5", "title": "Reproduced Anyway", "reproduction_category": "Fully Reproduced",
   "customizations": [{"key": "__EXR__no-codebase", "value": "1"}]}
]`

const includeJSON = `[
  {"article_id": "rayyan-10", "title": "DeepProbLog", "reproduction_category": "Missing Code"},
  {"article_id": "rayyan-11", "title": "Scallop"}
]`

const linksJSON = `{"Cluster 1": [
  {"Paper ID": 1, "Paper Title": "Logic Tensor Networks", "URL": "https://arxiv.org/abs/2012.13635", "GitHub": "https://github.com/logictensornetworks/ltn"}
]}`

func overviewJSON(excluded int) string {
	return `{"rayyan_screening": {"total_results_retrieved": 9, "after_dedup_rayyan": 7,
  "included_within_scope": 3, "excluded_out_of_scope": ` + strconv.Itoa(excluded) + `}}`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setup(t *testing.T, excluded int) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "include.json"), includeJSON)
	writeFile(t, filepath.Join(dir, "exclude.json"), excludeJSON)
	writeFile(t, filepath.Join(dir, "links.json"), linksJSON)
	if excluded >= 0 {
		writeFile(t, filepath.Join(dir, "overview.json"), overviewJSON(excluded))
	}

	cfg := &config.Config{
		Inputs: config.Inputs{
			DataDir:      dir,
			IncludeJSON:  "include.json",
			ExcludeJSON:  "exclude.json",
			Overview:     "overview.json",
			ClusterLinks: "links.json",
		},
		Screening: config.Screening{IDPrefix: "rayyan-", TopK: 2},
		Output:    config.Output{DataDir: filepath.Join(dir, "state")},
	}
	return cfg, dir
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func stepNames(r *Result) []string {
	var names []string
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestRun(t *testing.T) {
	cfg, dir := setup(t, 4)
	db := openTestDB(t)
	out := filepath.Join(dir, "out")

	r := New(cfg, db, nil).Run(context.Background(), Options{Label: "Pilot", OutputDir: out})
	for _, s := range r.Steps {
		require.NoError(t, s.Err, s.Name)
	}
	assert.False(t, r.Failed())
	assert.Equal(t, []string{"Load", "Enrich", "Aggregate", "Project", "Render", "Archive"}, stepNames(r))

	require.NotNil(t, r.Report)
	res := r.Report.Result
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, []string{"rayyan-5"}, res.FilteredReproduced)
	assert.Equal(t, 2, res.Criteria[category.NoCodebase].Count)

	v := r.Report.Views
	require.NotNil(t, v)
	assert.Equal(t, projection.NodeRemainder, v.Rows[2].Category)
	assert.Equal(t, 1, v.Rows[2].Count)

	for _, name := range []string{report.MarkdownFile, report.ViewsFile, report.EnrichedFile, IncludeFile, ExcludeFile} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	enriched, err := records.Load(filepath.Join(out, ExcludeFile))
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/logictensornetworks/ltn", enriched[0].RepositoryURL)
	assert.Equal(t, "https://arxiv.org/abs/2012.13635", enriched[0].URL)

	run, err := db.GetRun(r.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "Pilot", run.Label)
	assert.Equal(t, 9, run.TotalRetrieved)
	assert.Equal(t, 3, run.Included)
	assert.Equal(t, 4, run.Excluded)
	assert.Equal(t, 2, run.TopK)
	assert.Nil(t, run.IntegrityError)
	require.NotNil(t, run.ReportMarkdown)
	assert.Contains(t, *run.ReportMarkdown, "# Pilot")

	all, err := db.GetClassifications(r.RunID, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	noCode, err := db.GetClassifications(r.RunID, category.NoCodebase)
	require.NoError(t, err)
	require.Len(t, noCode, 2)
	require.NotNil(t, noCode[0].RepositoryURL)
	assert.Equal(t, []string{category.NoCodebase, category.NoEval}, noCode[1].Categories)

	outcomes, err := db.GetRunOutcomes(r.RunID)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, category.MissingCode, outcomes[0].Outcome)
}

func TestRunFolds(t *testing.T) {
	cfg, dir := setup(t, 4)
	cfg.Screening.Folds = map[string][]string{category.NoCodebase: {category.NoEval}}

	r := New(cfg, nil, nil).Run(context.Background(), Options{OutputDir: filepath.Join(dir, "out")})
	require.False(t, r.Failed())

	res := r.Report.Result
	_, hasNoEval := res.Criteria[category.NoEval]
	assert.False(t, hasNoEval)
	assert.Equal(t, 2, res.Criteria[category.NoCodebase].Count)
	assert.Equal(t, 3, res.Single)
	assert.Equal(t, 0, res.Multi)
	assert.Equal(t, "Archive disabled", r.Steps[len(r.Steps)-1].Summary)
}

func TestRunIntegrityError(t *testing.T) {
	cfg, dir := setup(t, 2)
	db := openTestDB(t)

	r := New(cfg, db, nil).Run(context.Background(), Options{OutputDir: filepath.Join(dir, "out")})
	assert.True(t, r.Failed())
	assert.Equal(t, []string{"Load", "Enrich", "Aggregate", "Project", "Render", "Archive"}, stepNames(r))

	var ie *projection.IntegrityError
	require.True(t, errors.As(r.Steps[3].Err, &ie))
	assert.Equal(t, projection.NodeRemainder, ie.Node)
	assert.Equal(t, 2, ie.Expected)
	assert.Equal(t, 3, ie.Actual)

	require.NoError(t, r.Steps[4].Err)
	require.NoError(t, r.Steps[5].Err)
	assert.Nil(t, r.Report.Views)

	run, err := db.GetRun(r.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.NotNil(t, run.IntegrityError)
	assert.Nil(t, run.ViewsJSON)
	assert.Contains(t, *run.ReportMarkdown, "Integrity check failed")
}

func TestRunDerivedOverview(t *testing.T) {
	cfg, dir := setup(t, -1)

	r := New(cfg, nil, nil).Run(context.Background(), Options{OutputDir: filepath.Join(dir, "out")})
	require.False(t, r.Failed())

	o := r.Report.Views.Overview
	assert.Equal(t, projection.Overview{TotalRetrieved: 7, AfterDedup: 7, Included: 3, Excluded: 4}, o)
	assert.NoFileExists(t, filepath.Join(dir, "out", report.EnrichedFile))
}

func TestRunMalformedInput(t *testing.T) {
	cfg, dir := setup(t, 4)
	writeFile(t, filepath.Join(dir, "exclude.json"), "{")

	r := New(cfg, nil, nil).Run(context.Background(), Options{OutputDir: filepath.Join(dir, "out")})
	require.Len(t, r.Steps, 1)
	assert.ErrorIs(t, r.Steps[0].Err, records.ErrMalformed)
	assert.Nil(t, r.Report)
}

func TestRunMalformedOverview(t *testing.T) {
	cfg, dir := setup(t, 4)
	writeFile(t, filepath.Join(dir, "overview.json"), `{"rayyan_screening": {}}`)

	r := New(cfg, nil, nil).Run(context.Background(), Options{OutputDir: filepath.Join(dir, "out")})
	assert.Equal(t, []string{"Load", "Enrich", "Aggregate", "Project"}, stepNames(r))
	assert.ErrorIs(t, r.Steps[3].Err, records.ErrMalformed)
}

func TestDryRun(t *testing.T) {
	cfg, _ := setup(t, 4)
	cfg.Inputs.ClusterLinks = "missing.json"

	r := New(cfg, nil, nil).DryRun()
	require.Len(t, r.Steps, 6)
	assert.Contains(t, r.Steps[0].Summary, "(present)")
	assert.Contains(t, r.Steps[1].Summary, "(missing)")
	assert.Contains(t, r.Steps[3].Summary, "top 2")
	assert.Contains(t, r.Steps[4].Summary, filepath.Join(cfg.Output.DataDir, "reports"))
	assert.Equal(t, "[dry-run] archive disabled", r.Steps[5].Summary)
}

const candidatesAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>arXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2025-03-01T00:00:00Z</updated>
  <entry>
    <id>http://arxiv.org/abs/2503.00001v1</id>
    <title>Neuro-Symbolic Program Synthesis</title>
    <published>2025-02-27T18:00:00Z</published>
    <updated>2025-02-27T18:00:00Z</updated>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2012.13635v1</id>
    <title>Logic Tensor Networks</title>
    <published>2020-12-25T18:00:00Z</published>
    <updated>2020-12-25T18:00:00Z</updated>
  </entry>
</feed>`

func TestImport(t *testing.T) {
	cfg, dir := setup(t, 4)
	writeFile(t, filepath.Join(dir, "feeds", "arxiv.atom"), candidatesAtom)
	cfg.Inputs.Feeds = []config.Feed{{Path: "feeds/arxiv.atom", Name: "arXiv"}}

	res, path, err := New(cfg, nil, nil).Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalFound)
	assert.Equal(t, 1, res.NewArticles)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Sources["arXiv"])

	saved, err := records.Load(path)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Neuro-Symbolic Program Synthesis", saved[0].Title)
}
