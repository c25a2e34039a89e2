package category

import "strings"

// Reproduction outcome categories assigned during data extraction.
const (
	FullyReproduced        = "Fully Reproduced"
	PartialAbove           = "Partially Reproduced (Above Threshold)"
	PartialBelow           = "Partially Reproduced (Below Threshold)"
	AllArtifactsFailed     = "Has All Artifacts but Failed"
	MissingCode            = "Missing Code"
	MissingSomeArtifacts   = "Missing Some Artifacts"
	NoQuantitativeEval     = "No quantitative evaluation"
	NotAttemptedOffTopic   = "Not Attempted - Off Topic"
	NotAttemptedBackground = "Not Attempted - Background Article"
	NotAttemptedFulltext   = "Not Attempted - No Fulltext"
	NotAttemptedResearch   = "Not Attempted - Not a Research Article"
)

// outcomeRule matches when every term of any alternative occurs in the
// lower-cased input.
type outcomeRule struct {
	label string
	alts  [][]string
}

// outcomeRules are evaluated in order. Several raw strings satisfy more than
// one rule ("partially reproduced, below threshold, missing data", "fully
// reproduced after author review"), so the reproduced rules come before the
// generic not-attempted and missing ones.
var outcomeRules = []outcomeRule{
	{PartialBelow, [][]string{{"partial", "below"}}},
	{PartialAbove, [][]string{{"partial", "above"}}},
	{FullyReproduced, [][]string{{"fully reproduced"}, {"fully reproducible"}}},
	{AllArtifactsFailed, [][]string{{"has all artifacts"}, {"all artifacts but failed"}}},
	{MissingSomeArtifacts, [][]string{{"missing some"}}},
	{MissingCode, [][]string{{"missing code"}, {"no code"}}},
	{NoQuantitativeEval, [][]string{{"no quantitative"}, {"no evaluation"}}},
	{NotAttemptedOffTopic, [][]string{
		{"off topic"}, {"off-topic"}, {"not neuro-symbolic"}, {"not neurosymbolic"}, {"not neuro symbolic"},
	}},
	{NotAttemptedBackground, [][]string{{"background"}, {"review"}, {"survey"}}},
	{NotAttemptedResearch, [][]string{{"not a research"}, {"not research"}}},
	{NotAttemptedFulltext, [][]string{{"fulltext"}, {"full text"}, {"full-text"}}},
	{MissingSomeArtifacts, [][]string{{"missing"}}},
}

// exactOutcomes covers terse spreadsheet answers that substring rules
// cannot safely match.
var exactOutcomes = map[string]string{
	"yes":   FullyReproduced,
	"full":  FullyReproduced,
	"match": FullyReproduced,
}

// NormalizeOutcome maps a free-text reproduction outcome to its canonical
// label. Unknown strings pass through trimmed.
func NormalizeOutcome(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	if lower == "" {
		return ""
	}
	if label, ok := exactOutcomes[lower]; ok {
		return label
	}
	for _, rule := range outcomeRules {
		if rule.matches(lower) {
			return rule.label
		}
	}
	return trimmed
}

func (r outcomeRule) matches(lower string) bool {
	for _, terms := range r.alts {
		all := true
		for _, term := range terms {
			if !strings.Contains(lower, term) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// IsReproduced reports whether an outcome label counts as a reproduced
// paper, fully or partially on either side of the gap threshold. Such
// records never appear in exclusion breakdowns.
func IsReproduced(label string) bool {
	switch NormalizeOutcome(label) {
	case FullyReproduced, PartialAbove, PartialBelow:
		return true
	}
	return false
}

// Outcomes returns every canonical outcome label in display order.
func Outcomes() []string {
	return []string{
		FullyReproduced, PartialAbove, PartialBelow, AllArtifactsFailed,
		MissingCode, MissingSomeArtifacts, NoQuantitativeEval,
		NotAttemptedOffTopic, NotAttemptedBackground, NotAttemptedFulltext, NotAttemptedResearch,
	}
}
