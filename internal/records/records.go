// Package records holds article records and their reviewer annotations, and
// loads them from the exported record-set documents.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// DefaultIDPrefix is the source-system tag carried by exported article ids.
const DefaultIDPrefix = "rayyan-"

// ErrMalformed marks a record-set document that is not structurally valid.
var ErrMalformed = errors.New("malformed record set")

// NormalizeID strips whitespace and the source prefix from an article id so
// that ids from different datasets can be compared.
func NormalizeID(id, prefix string) string {
	id = strings.TrimSpace(id)
	if prefix != "" && len(id) >= len(prefix) && strings.EqualFold(id[:len(prefix)], prefix) {
		id = id[len(prefix):]
	}
	return strings.ToLower(strings.TrimSpace(id))
}

// NormalizeTitle lower-cases a title and drops punctuation and repeated
// whitespace, for exact title matching across datasets.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Load reads a JSON record-set document (an array of articles).
func Load(path string) ([]Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record set: %w", err)
	}
	articles, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return articles, nil
}

// Parse decodes a JSON record set. Every article must carry an id.
func Parse(data []byte) ([]Article, error) {
	var articles []Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, a := range articles {
		if a.ArticleID == "" {
			return nil, fmt.Errorf("%w: entry %d has no article_id", ErrMalformed, i)
		}
	}
	return articles, nil
}

// Save writes a record set as indented JSON.
func Save(path string, articles []Article) error {
	if articles == nil {
		articles = []Article{}
	}
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record set: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Index maps normalized article ids to positions in articles. When an id
// occurs more than once the first occurrence wins.
func Index(articles []Article, prefix string) map[string]int {
	idx := make(map[string]int, len(articles))
	for i, a := range articles {
		id := NormalizeID(a.ArticleID, prefix)
		if id == "" {
			continue
		}
		if _, ok := idx[id]; !ok {
			idx[id] = i
		}
	}
	return idx
}

// Dedupe drops later articles whose normalized id was already seen.
func Dedupe(articles []Article, prefix string) []Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		id := NormalizeID(a.ArticleID, prefix)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, a)
	}
	return out
}

// IDs returns the sorted article ids of a record set.
func IDs(articles []Article) []string {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ArticleID
	}
	sort.Strings(ids)
	return ids
}
