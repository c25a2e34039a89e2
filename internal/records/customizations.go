package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var customizationColumns = []string{"article_id", "created_at", "user_id", "user_email", "key", "value"}

// ParseCustomizations reads a reviewer customizations log (CSV with a header
// row) and groups the entries by normalized article id, preserving file order.
func ParseCustomizations(r io.Reader, prefix string) (map[string][]Annotation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return map[string][]Annotation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading customizations header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range customizationColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: customizations log missing column %q", ErrMalformed, name)
		}
	}

	get := func(row []string, name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make(map[string][]Annotation)
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading customizations line %d: %w", line, err)
		}
		id := NormalizeID(get(row, "article_id"), prefix)
		if id == "" {
			continue
		}
		out[id] = append(out[id], Annotation{
			CreatedAt: get(row, "created_at"),
			UserID:    get(row, "user_id"),
			UserEmail: get(row, "user_email"),
			Key:       get(row, "key"),
			Value:     get(row, "value"),
		})
	}
	return out, nil
}

// Attach sets the annotations of each article from a customizations map
// keyed by normalized id. Articles without entries keep what they had.
func Attach(articles []Article, annotations map[string][]Annotation, prefix string) int {
	matched := 0
	for i := range articles {
		if entries, ok := annotations[NormalizeID(articles[i].ArticleID, prefix)]; ok {
			articles[i].Annotations = entries
			matched++
		}
	}
	return matched
}
