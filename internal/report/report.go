// Package report renders an analysis run into markdown, HTML and a plain
// text summary.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/SLRReport/internal/aggregate"
	"github.com/TobiSchelling/SLRReport/internal/projection"
	"github.com/TobiSchelling/SLRReport/internal/records"
)

const topCombinations = 10

// Data is everything a report is rendered from.
type Data struct {
	Title    string
	Result   *aggregate.Result
	Views    *projection.Views
	Outcomes *aggregate.Breakdown
	// Excluded is the excluded record set, used for per-category listings.
	// Nil omits the listings.
	Excluded []records.Article
	// Err is an integrity failure of the projection. Views is nil when set.
	Err error
}

// Markdown renders the full report.
func Markdown(d *Data) string {
	title := d.Title
	if title == "" {
		title = "Screening report"
	}

	sections := []string{
		fmt.Sprintf("# %s\n\n%s", title, keyFigures(d)),
	}
	if d.Err != nil {
		sections = append(sections, fmt.Sprintf("## Integrity check failed\n\n%s\n\nThe table, chart and flow views were not produced.", d.Err))
	}
	if d.Views != nil {
		sections = append(sections, overviewSection(d.Views.Overview), tableSection(d.Views))
	}
	if d.Result != nil {
		if s := combinationSection(d.Result); s != "" {
			sections = append(sections, s)
		}
	}
	if d.Outcomes != nil && d.Outcomes.Total > 0 {
		sections = append(sections, outcomeSection(d.Outcomes))
	}
	if d.Result != nil && len(d.Result.UnknownCodes) > 0 {
		sections = append(sections, "## Unmapped criterion codes\n\n"+bullets(d.Result.UnknownCodes))
	}
	if d.Result != nil && d.Excluded != nil {
		sections = append(sections, groupSections(d.Result, d.Excluded)...)
	}

	return strings.Join(sections, "\n\n---\n\n") + "\n"
}

func keyFigures(d *Data) string {
	if d.Result == nil {
		return "- No excluded records were analysed."
	}
	r := d.Result
	lines := []string{
		fmt.Sprintf("- %d excluded records analysed", r.Total),
		fmt.Sprintf("- %d with a single criterion, %d with several, %d without any", r.Single, r.Multi, r.None),
	}
	if ranked := r.Ranked(); len(ranked) > 0 {
		top := ranked[0]
		lines = append(lines, fmt.Sprintf("- Most frequent reason: %s (%d, %s)", top.Category, top.Count, formatPercent(top.Percentage)))
	}
	if n := len(r.FilteredReproduced); n > 0 {
		lines = append(lines, fmt.Sprintf("- %d reproduced records left out of the exclusion breakdown", n))
	}
	return strings.Join(lines, "\n")
}

func overviewSection(o projection.Overview) string {
	return fmt.Sprintf(`## Screening overview

| Stage | Records |
|---|---:|
| %s | %d |
| %s | %d |
| %s | %d |
| %s | %d |
| Excluded | %d |`,
		projection.NodeTotal, o.TotalRetrieved,
		projection.NodeDuplicates, o.Duplicates(),
		projection.NodeAfterDedup, o.AfterDedup,
		projection.NodeIncluded, o.Included,
		o.Excluded)
}

func tableSection(v *projection.Views) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Exclusion reasons (top %d)\n\n", v.K)
	b.WriteString("| Reason | Records | Share |\n|---|---:|---:|\n")
	for _, r := range v.Table {
		name := r.Category
		if r.Remainder {
			name = "_" + name + "_"
		}
		fmt.Fprintf(&b, "| %s | %d | %s |\n", escapeCell(name), r.Count, formatPercent(r.Percentage))
	}
	fmt.Fprintf(&b, "\nShares are relative to %d excluded records. A record can carry several reasons.", v.Overview.Excluded)
	return b.String()
}

func combinationSection(r *aggregate.Result) string {
	combos := r.TopCombinations(topCombinations)
	if len(combos) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Most common combinations\n\n| Reasons | Records | Share |\n|---|---:|---:|\n")
	for _, c := range combos {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", escapeCell(c.Key()), c.Count, formatPercent(c.Percentage))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func outcomeSection(o *aggregate.Breakdown) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Data extraction outcomes\n\n%d records with a recorded outcome.\n\n", o.Total)
	b.WriteString("| Outcome | Records | Share |\n|---|---:|---:|\n")
	for _, r := range o.Ranked() {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", escapeCell(r.Category), r.Count, formatPercent(r.Percentage))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func groupSections(r *aggregate.Result, excluded []records.Article) []string {
	byID := make(map[string]records.Article, len(excluded))
	for _, a := range excluded {
		byID[a.ArticleID] = a
	}

	var sections []string
	for _, rk := range r.Ranked() {
		ids := r.Groups[rk.Category]
		var lines []string
		for _, id := range ids {
			a, ok := byID[id]
			if !ok {
				lines = append(lines, "- "+id)
				continue
			}
			lines = append(lines, articleLine(a))
		}
		sections = append(sections, fmt.Sprintf("## %s (%d)\n\n%s", rk.Category, len(ids), strings.Join(lines, "\n")))
	}
	return sections
}

func articleLine(a records.Article) string {
	title := a.Title
	if title == "" {
		title = a.ArticleID
	}
	line := "- " + title
	if a.URL != "" {
		line = fmt.Sprintf("- [%s](%s)", title, a.URL)
	}
	if a.Year != "" {
		line += " (" + a.Year + ")"
	}
	if a.RepositoryURL != "" {
		line += fmt.Sprintf(" [code](%s)", a.RepositoryURL)
	}
	return line
}

func bullets(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	return "- " + strings.Join(sorted, "\n- ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderMarkdown converts markdown to an HTML fragment.
func RenderMarkdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d1d5db; padding: 0.25rem 0.75rem; }
td:not(:first-child) { text-align: right; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders the report markdown as a standalone page.
func HTML(title, markdown string) ([]byte, error) {
	body, err := RenderMarkdown(markdown)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{title, body}); err != nil {
		return nil, fmt.Errorf("rendering report page: %w", err)
	}
	return buf.Bytes(), nil
}
