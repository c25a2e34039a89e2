package enrich

import (
	"go.uber.org/zap"

	"github.com/TobiSchelling/SLRReport/internal/category"
	"github.com/TobiSchelling/SLRReport/internal/records"
)

// Stats counts what a backfill filled in.
type Stats struct {
	Matched      int `json:"matched"`
	URLs         int `json:"urls"`
	Repositories int `json:"repositories"`
}

// Enricher fills missing url and repository_url fields.
type Enricher struct {
	ref    *CrossRef
	logger *zap.Logger
}

// New returns an Enricher. ref may be nil, in which case only spreadsheet
// fields and notes are consulted.
func New(ref *CrossRef, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{ref: ref, logger: logger}
}

// Backfill returns copies of articles with missing links filled in. Present
// values are never overwritten. Repository links are taken from the
// article's own spreadsheet fields, then the cross-reference row, then
// code-host links in the note.
func (e *Enricher) Backfill(articles []records.Article) ([]records.Article, Stats) {
	var st Stats
	out := make([]records.Article, len(articles))
	for i, a := range articles {
		row, found := e.ref.Lookup(a.ArticleID, a.Title)
		if found {
			st.Matched++
		}

		if a.URL == "" && found {
			if u := PaperURL(row); u != "" {
				a.URL = u
				st.URLs++
			}
		}

		if a.RepositoryURL == "" {
			repo := SpreadsheetRepository(a)
			if repo == "" && found {
				repo = RepositoryURL(row)
			}
			if repo == "" {
				if links := ExtractLinks(a.Note); len(links.Codebase) > 0 {
					repo = links.Codebase[0]
				}
			}
			if repo != "" {
				a.RepositoryURL = repo
				st.Repositories++
				e.logger.Debug("backfilled repository",
					zap.String("article_id", a.ArticleID), zap.String("repository_url", repo))
			}
		}
		out[i] = a
	}
	e.logger.Info("cross-reference backfill",
		zap.Int("articles", len(articles)),
		zap.Int("matched", st.Matched),
		zap.Int("urls", st.URLs),
		zap.Int("repositories", st.Repositories))
	return out, st
}

// RepositoryURL returns the first link-like value of a row, preferring
// code-related columns.
func RepositoryURL(row Row) string {
	cols := category.FieldsFor(row.Names(), category.RoleLink)
	for _, col := range cols {
		if !isRepoColumn(col) {
			continue
		}
		if u, ok := NormalizeURL(row[col]); ok {
			return u
		}
	}
	for _, col := range cols {
		if u, ok := NormalizeURL(row[col]); ok {
			return u
		}
	}
	return ""
}

// PaperURL returns the first link-like value of a row from a column that is
// not code-related.
func PaperURL(row Row) string {
	for _, col := range category.FieldsFor(row.Names(), category.RoleLink) {
		if isRepoColumn(col) {
			continue
		}
		if u, ok := NormalizeURL(row[col]); ok {
			return u
		}
	}
	return ""
}

// SpreadsheetRepository returns the repository link recorded in the
// article's own spreadsheet fields.
func SpreadsheetRepository(a records.Article) string {
	if len(a.ExcelData) == 0 {
		return ""
	}
	fields := category.ResolveFields(a.FieldNames())
	if col, ok := fields[category.RoleRepository]; ok {
		if u, ok := NormalizeURL(a.Field(col)); ok {
			return u
		}
	}
	for _, col := range category.FieldsFor(a.FieldNames(), category.RoleLink) {
		if !isRepoColumn(col) {
			continue
		}
		if u, ok := NormalizeURL(a.Field(col)); ok {
			return u
		}
	}
	return ""
}
