package aggregate

import (
	"sort"
	"strings"

	"github.com/TobiSchelling/SLRReport/internal/category"
	"github.com/TobiSchelling/SLRReport/internal/records"
)

// emptyValues are spreadsheet placeholders treated as no value.
var emptyValues = map[string]bool{
	"":                               true,
	"n/a":                            true,
	"nan":                            true,
	"none":                           true,
	"null":                           true,
	"not extracted from spreadsheet": true,
}

func blank(v string) bool {
	return emptyValues[strings.ToLower(strings.TrimSpace(v))]
}

// Outcome returns the canonical reproduction outcome of an article. An
// explicit reproduction_category wins; otherwise it is inferred from the
// spreadsheet fields. Articles with neither yield "".
func Outcome(a records.Article) string {
	if !blank(a.ReproductionCategory) {
		return category.NormalizeOutcome(a.ReproductionCategory)
	}
	if len(a.ExcelData) == 0 {
		return ""
	}
	return inferOutcome(a)
}

// inferOutcome applies, in order: a stated exclusion reason, a stated
// reproduction status, a missing codebase, and finally the remainder
// category.
func inferOutcome(a records.Article) string {
	fields := category.ResolveFields(a.FieldNames())

	if name, ok := fields[category.RoleExclusionReason]; ok {
		if reason := a.Field(name); !blank(reason) {
			switch label := category.NormalizeOutcome(reason); label {
			case category.NotAttemptedOffTopic, category.NotAttemptedBackground,
				category.NotAttemptedResearch, category.NotAttemptedFulltext:
				return label
			}
			return category.MissingSomeArtifacts
		}
	}
	if !blank(a.ExclusionReason) {
		switch label := category.NormalizeOutcome(a.ExclusionReason); label {
		case category.NotAttemptedOffTopic, category.NotAttemptedBackground,
			category.NotAttemptedResearch, category.NotAttemptedFulltext:
			return label
		}
	}

	if name, ok := fields[category.RoleReproducedStatus]; ok {
		if status := a.Field(name); !blank(status) {
			label := category.NormalizeOutcome(status)
			for _, known := range category.Outcomes() {
				if label == known {
					return label
				}
			}
		}
	}

	if name, ok := fields[category.RoleCodebase]; ok {
		switch strings.ToLower(strings.TrimSpace(a.Field(name))) {
		case "no", "0", "false", "n":
			return category.MissingCode
		}
	}
	return category.MissingSomeArtifacts
}

// Breakdown is the data-extraction outcome tally of a record set.
type Breakdown struct {
	Total  int                 `json:"total"`
	Counts map[string]Count    `json:"counts"`
	Groups map[string][]string `json:"groups"`
}

// Outcomes tallies the reproduction outcomes of articles that were not
// reproduced. Articles without any outcome are skipped.
func Outcomes(articles []records.Article) *Breakdown {
	b := &Breakdown{
		Counts: make(map[string]Count),
		Groups: make(map[string][]string),
	}
	tally := make(map[string]int)
	for _, a := range articles {
		label := Outcome(a)
		if label == "" || category.IsReproduced(label) {
			continue
		}
		b.Total++
		tally[label]++
		b.Groups[label] = append(b.Groups[label], a.ArticleID)
	}
	for label, n := range tally {
		b.Counts[label] = Count{Count: n, Percentage: percent(n, b.Total)}
		sort.Strings(b.Groups[label])
	}
	return b
}

// Ranked returns the outcome labels ordered by count descending, then name.
func (b *Breakdown) Ranked() []Ranked {
	r := &Result{Criteria: b.Counts}
	return r.Ranked()
}
