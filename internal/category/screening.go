// Package category maps raw screening codes and reproduction-outcome labels
// onto the fixed canonical categories shown in every report view.
package category

import (
	"sort"
	"strings"
)

// Canonical screening-exclusion categories.
const (
	NoCodebase  = "No codebase/implementation"
	OffTopic    = "Off-topic/Not neuro-symbolic"
	Background  = "review/background article"
	NotEnglish  = "not-in-english"
	NoFulltext  = "no-fulltext"
	Duplicate   = "Duplicate"
	NotResearch = "Not research paper"
	NoEval      = "No evaluation"
)

// screening maps raw criterion codes, including legacy codes from early
// screening rounds, to canonical categories.
var screening = map[string]string{
	"off-topic":          OffTopic,
	"no-codebase":        NoCodebase,
	"survey":             Background,
	"background article": Background,
	"review":             Background,
	"not-research":       NotResearch,
	"no-eval":            NoEval,
	"duplicate":          Duplicate,
	"no-fulltext":        NoFulltext,
	"not-in-english":     NotEnglish,
	"foreign language":   NotEnglish,

	// Legacy codes folded into the no-codebase bucket by team convention.
	"c":             NoCodebase,
	"wrong outcome": NoCodebase,
	"engl":          NoCodebase,
	"v":             NoCodebase,
	"Other/Unclear": NoCodebase,
}

var screeningFolded = func() map[string]string {
	m := make(map[string]string, len(screening))
	for k, v := range screening {
		m[strings.ToLower(k)] = v
	}
	return m
}()

var canonical = []string{
	NoCodebase, OffTopic, Background, NotEnglish, NoFulltext, Duplicate, NotResearch, NoEval,
}

// Lookup maps a raw code to its canonical category. The boolean is false
// when the code is not in the table; the trimmed code is returned unchanged
// in that case.
func Lookup(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if c, ok := screening[code]; ok {
		return c, true
	}
	if c, ok := screeningFolded[strings.ToLower(code)]; ok {
		return c, true
	}
	if IsCanonical(code) {
		return code, true
	}
	return code, false
}

// Normalize maps a raw code to its canonical category, passing unknown
// codes through as their own category.
func Normalize(code string) string {
	c, _ := Lookup(code)
	return c
}

// IsCanonical reports whether label is one of the canonical screening
// categories.
func IsCanonical(label string) bool {
	for _, c := range canonical {
		if c == label {
			return true
		}
	}
	return false
}

// Canonical returns the canonical screening categories in sorted order.
func Canonical() []string {
	out := append([]string(nil), canonical...)
	sort.Strings(out)
	return out
}

// Codes returns the raw codes mapped to a canonical category, sorted.
func Codes(label string) []string {
	var codes []string
	for code, c := range screening {
		if c == label {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}
