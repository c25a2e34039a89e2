package enrich

import (
	"regexp"
	"strings"
)

// placeholders are spreadsheet values that never hold a link.
var placeholders = map[string]bool{
	"":     true,
	"n/a":  true,
	"nan":  true,
	"none": true,
	"null": true,
	"n":    true,
}

// NormalizeURL returns v as a link when it looks like one. Bare host names
// get an https:// scheme.
func NormalizeURL(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if placeholders[strings.ToLower(v)] {
		return "", false
	}
	lower := strings.ToLower(v)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return v, true
	case strings.HasPrefix(lower, "www."):
		return "https://" + v, true
	case strings.Contains(v, ".") && len(v) > 5 && !strings.ContainsAny(v, " \t\n"):
		return "https://" + v, true
	}
	return "", false
}

var repoTerms = []string{"github", "repository", "repo", "code", "source"}

func isRepoColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, t := range repoTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Links are the URLs found in a free-text note, bucketed by kind.
type Links struct {
	Codebase []string `json:"codebase,omitempty"`
	Data     []string `json:"data,omitempty"`
	Other    []string `json:"other,omitempty"`
}

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s\]\},]+`)
	codeHosts       = []string{"github.com/", "gitlab.com/", "bitbucket.org/"}
	dataHosts       = []string{"huggingface.co/", "zenodo.org/", "figshare.com/", "kaggle.com/"}
	paperHosts      = []string{"arxiv.org", "openreview.net", "aclweb.org", "acl-anthology.org"}
	dataKeywords    = []string{"dataset", "data", "zenodo", "figshare", "kaggle", "drive.google.com"}
	codebaseKeyword = []string{"code", "source", "repository", "repo"}
)

// ExtractLinks pulls every http(s) link out of a note. Code hosts go to
// Codebase, dataset hosts to Data; remaining links are classified by
// keyword, paper sites and anything unrecognized going to Other.
func ExtractLinks(note string) Links {
	var l Links
	seen := make(map[string]bool)
	for _, raw := range urlPattern.FindAllString(note, -1) {
		u := strings.TrimRight(raw, `.,;:"`)
		if seen[u] {
			continue
		}
		seen[u] = true

		lower := strings.ToLower(u)
		switch {
		case containsAny(lower, codeHosts):
			l.Codebase = append(l.Codebase, u)
		case containsAny(lower, dataHosts):
			l.Data = append(l.Data, u)
		case containsAny(lower, paperHosts):
			l.Other = append(l.Other, u)
		case containsAny(lower, dataKeywords):
			l.Data = append(l.Data, u)
		case containsAny(lower, codebaseKeyword):
			l.Codebase = append(l.Codebase, u)
		default:
			l.Other = append(l.Other, u)
		}
	}
	return l
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
