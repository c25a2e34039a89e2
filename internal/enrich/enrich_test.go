package enrich

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TobiSchelling/SLRReport/internal/records"
)

const sampleSheets = `{
  "Cluster 1": [
    {"Paper ID": 242083763, "Paper Title": "Neural Theorem Proving", "URL": "arxiv.org/abs/2101.00001", "GitHub": "https://github.com/example/ntp"},
    {"Paper ID": "rayyan-5", "Paper Title": "Symbolic Planning", "URL": "N/A", "Code link": "www.example.org/code"}
  ],
  "Cluster 2": [
    {"ID": null, "Title": "Logic Tensor Networks!", "Link": "https://ltn.example.com", "Repository": "nan"}
  ]
}`

func loadSample(t *testing.T) *CrossRef {
	t.Helper()
	sheets, err := ParseSheets([]byte(sampleSheets))
	require.NoError(t, err)
	return NewCrossRef(sheets, records.DefaultIDPrefix)
}

func TestLookup_PrefixStripped(t *testing.T) {
	ref := loadSample(t)
	row, ok := ref.Lookup(" rayyan-242083763 ", "")
	require.True(t, ok)
	assert.Equal(t, "242083763", row["Paper ID"])

	row, ok = ref.Lookup("5", "")
	require.True(t, ok)
	assert.Equal(t, "Symbolic Planning", row["Paper Title"])
	assert.Equal(t, 3, ref.Len())
}

func TestLookup_TitleFallback(t *testing.T) {
	ref := loadSample(t)
	row, ok := ref.Lookup("rayyan-999", "logic tensor networks")
	require.True(t, ok)
	assert.Equal(t, "https://ltn.example.com", row["Link"])

	_, ok = ref.Lookup("rayyan-999", "unknown paper")
	assert.False(t, ok)

	var nilRef *CrossRef
	_, ok = nilRef.Lookup("rayyan-1", "x")
	assert.False(t, ok)
}

func TestBackfill_FromCrossReference(t *testing.T) {
	arts := []records.Article{{ArticleID: "rayyan-242083763", Title: "Neural Theorem Proving"}}
	out, st := New(loadSample(t), zap.NewNop()).Backfill(arts)

	assert.Equal(t, "https://arxiv.org/abs/2101.00001", out[0].URL)
	assert.Equal(t, "https://github.com/example/ntp", out[0].RepositoryURL)
	assert.Equal(t, Stats{Matched: 1, URLs: 1, Repositories: 1}, st)
	// The input is not modified.
	assert.Empty(t, arts[0].URL)
}

func TestBackfill_KeepsExistingValues(t *testing.T) {
	arts := []records.Article{{
		ArticleID:     "rayyan-242083763",
		URL:           "https://doi.org/10.1/abc",
		RepositoryURL: "https://gitlab.com/own/repo",
	}}
	out, st := New(loadSample(t), nil).Backfill(arts)
	assert.Equal(t, arts[0].URL, out[0].URL)
	assert.Equal(t, arts[0].RepositoryURL, out[0].RepositoryURL)
	assert.Zero(t, st.URLs)
	assert.Zero(t, st.Repositories)
}

func TestBackfill_SpreadsheetThenNote(t *testing.T) {
	arts := []records.Article{
		{ArticleID: "rayyan-1", ExcelData: map[string]string{"Repository (if any)": "github.com/a/b"}},
		{ArticleID: "rayyan-2", Note: "code at https://github.com/c/d, data https://zenodo.org/record/1."},
		{ArticleID: "rayyan-3", Note: "nothing here"},
	}
	out, st := New(nil, nil).Backfill(arts)
	assert.Equal(t, "https://github.com/a/b", out[0].RepositoryURL)
	assert.Equal(t, "https://github.com/c/d", out[1].RepositoryURL)
	assert.Empty(t, out[2].RepositoryURL)
	assert.Equal(t, 2, st.Repositories)
	assert.Zero(t, st.Matched)
}

func TestRepositoryURL_PrefersCodeColumns(t *testing.T) {
	row := Row{"URL": "https://paper.example.com", "Source code": "www.code.example.com/x"}
	assert.Equal(t, "https://www.code.example.com/x", RepositoryURL(row))
	assert.Equal(t, "https://paper.example.com", PaperURL(row))

	assert.Equal(t, "https://paper.example.com", RepositoryURL(Row{"URL": "https://paper.example.com"}))
	assert.Empty(t, RepositoryURL(Row{"Repository": "N", "Notes": "https://x.example.com"}))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://github.com/a/b", "https://github.com/a/b", true},
		{"http://x.org", "http://x.org", true},
		{"www.x.org", "https://www.x.org", true},
		{"github.com/a", "https://github.com/a", true},
		{"N/A", "", false},
		{"nan", "", false},
		{"None", "", false},
		{"a.b", "", false},
		{"see paper", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeURL(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestExtractLinks(t *testing.T) {
	note := `github: [https://github.com/x/y] weights https://huggingface.co/m/n;
paper https://arxiv.org/abs/1234.5678, data https://example.com/dataset/v1
src https://example.com/source/tool and https://example.com/about and again https://github.com/x/y`
	l := ExtractLinks(note)
	assert.Equal(t, []string{"https://github.com/x/y", "https://example.com/source/tool"}, l.Codebase)
	assert.Equal(t, []string{"https://huggingface.co/m/n", "https://example.com/dataset/v1"}, l.Data)
	assert.Equal(t, []string{"https://arxiv.org/abs/1234.5678", "https://example.com/about"}, l.Other)

	assert.Equal(t, Links{}, ExtractLinks(""))
}

func TestLoadSheets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster_links.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleSheets), 0o644))
	sheets, err := LoadSheets(path)
	require.NoError(t, err)
	assert.Len(t, sheets["Cluster 1"], 2)
	assert.Equal(t, "", sheets["Cluster 2"][0]["ID"])

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1,2]`), 0o644))
	_, err = LoadSheets(bad)
	assert.True(t, errors.Is(err, records.ErrMalformed), "got %v", err)
}
