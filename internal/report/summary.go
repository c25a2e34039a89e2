package report

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/SLRReport/internal/aggregate"
)

// Summary renders the plain text exclusion summary printed after a run.
func Summary(r *aggregate.Result) string {
	rule := strings.Repeat("=", 80)
	sub := strings.Repeat("-", 50)

	lines := []string{
		rule,
		"EXCLUSION CRITERIA ANALYSIS SUMMARY",
		rule,
		"",
		fmt.Sprintf("Total excluded articles: %d", r.Total),
		fmt.Sprintf("Articles with explicit exclusion criteria: %d", r.Single+r.Multi),
		fmt.Sprintf("Articles without explicit criteria: %d", r.None),
		"",
		"INDIVIDUAL EXCLUSION CRITERIA:",
		sub,
	}
	for _, rk := range r.Ranked() {
		lines = append(lines, fmt.Sprintf("%s: %d articles (%.2f%%)", rk.Category, rk.Count, rk.Percentage))
	}
	lines = append(lines,
		"",
		fmt.Sprintf("Articles with single criterion: %d", r.Single),
		fmt.Sprintf("Articles with multiple criteria: %d", r.Multi),
		"",
	)

	if combos := r.TopCombinations(topCombinations); len(combos) > 0 {
		lines = append(lines, "MOST COMMON CRITERIA COMBINATIONS:", sub)
		for _, c := range combos {
			lines = append(lines, fmt.Sprintf("%s: %d articles (%.2f%%)", c.Key(), c.Count, c.Percentage))
		}
	}
	if len(r.FilteredReproduced) > 0 {
		lines = append(lines, "", fmt.Sprintf("Reproduced articles left out: %d", len(r.FilteredReproduced)))
	}

	return strings.Join(lines, "\n")
}
