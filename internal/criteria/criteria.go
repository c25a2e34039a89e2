// Package criteria extracts exclusion-criterion flags from reviewer
// annotations.
package criteria

import (
	"sort"
	"strings"

	"github.com/TobiSchelling/SLRReport/internal/records"
)

// Marker prefixes annotation keys that flag an exclusion criterion.
const Marker = "__EXR__"

// setValue is the only annotation value that turns a flag on.
const setValue = "1"

// Code returns the criterion code of an annotation key and whether the key
// is an exclusion flag at all. Wrapping quote characters are ignored, and a
// bare marker with no code is not a flag.
func Code(key string) (string, bool) {
	key = strings.Trim(strings.TrimSpace(key), `"`)
	if !strings.HasPrefix(key, Marker) {
		return "", false
	}
	code := strings.TrimPrefix(key, Marker)
	if strings.TrimSpace(code) == "" {
		return "", false
	}
	return code, true
}

// Extract returns the sorted set of criterion codes set on an article.
// Flags from several reviewers are OR-combined.
func Extract(a records.Article) []string {
	set := make(map[string]struct{})
	for _, ann := range a.Annotations {
		code, ok := Code(ann.Key)
		if !ok || ann.Value != setValue {
			continue
		}
		set[code] = struct{}{}
	}
	codes := make([]string, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Flags returns every criterion code seen on the article with its combined
// state: true when at least one entry set it.
func Flags(a records.Article) map[string]bool {
	flags := make(map[string]bool)
	for _, ann := range a.Annotations {
		code, ok := Code(ann.Key)
		if !ok {
			continue
		}
		flags[code] = flags[code] || ann.Value == setValue
	}
	return flags
}
