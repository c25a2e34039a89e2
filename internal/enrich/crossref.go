// Package enrich backfills article URLs and repository links from a
// cross-reference dataset, spreadsheet fields and reviewer notes.
package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/TobiSchelling/SLRReport/internal/category"
	"github.com/TobiSchelling/SLRReport/internal/records"
)

// Row is one cross-reference row keyed by column name.
type Row map[string]string

// Names returns the row's column names, sorted.
func (r Row) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Sheets maps a sheet name to its rows.
type Sheets map[string][]Row

// LoadSheets reads a cross-reference document: a JSON object mapping sheet
// names to arrays of row objects. Scalar cell values of any JSON type are
// accepted.
func LoadSheets(path string) (Sheets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cross-reference: %w", err)
	}
	sheets, err := ParseSheets(data)
	if err != nil {
		return nil, fmt.Errorf("parsing cross-reference %s: %w", path, err)
	}
	return sheets, nil
}

// ParseSheets decodes a cross-reference document.
func ParseSheets(data []byte) (Sheets, error) {
	var raw map[string][]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", records.ErrMalformed, err)
	}
	sheets := make(Sheets, len(raw))
	for name, rows := range raw {
		out := make([]Row, 0, len(rows))
		for _, r := range rows {
			row := make(Row, len(r))
			for k, v := range r {
				row[k] = cell(v)
			}
			out = append(out, row)
		}
		sheets[name] = out
	}
	return sheets, nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// CrossRef indexes cross-reference rows by normalized article identifier and
// by normalized title. The first row seen wins, with sheets visited in name
// order.
type CrossRef struct {
	prefix  string
	byID    map[string]Row
	byTitle map[string]Row
	rows    int
}

// NewCrossRef indexes sheets. prefix is the source tag stripped from
// identifiers before comparison.
func NewCrossRef(sheets Sheets, prefix string) *CrossRef {
	c := &CrossRef{
		prefix:  prefix,
		byID:    make(map[string]Row),
		byTitle: make(map[string]Row),
	}
	names := make([]string, 0, len(sheets))
	for n := range sheets {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, sheet := range names {
		for _, row := range sheets[sheet] {
			c.rows++
			cols := row.Names()
			for _, col := range idColumns(cols) {
				if id := records.NormalizeID(row[col], prefix); id != "" {
					if _, ok := c.byID[id]; !ok {
						c.byID[id] = row
					}
				}
			}
			for _, col := range category.FieldsFor(cols, category.RoleTitle) {
				if t := records.NormalizeTitle(row[col]); t != "" {
					if _, ok := c.byTitle[t]; !ok {
						c.byTitle[t] = row
					}
				}
			}
		}
	}
	return c
}

func idColumns(cols []string) []string {
	if ids := category.FieldsFor(cols, category.RolePaperID); len(ids) > 0 {
		return ids
	}
	var out []string
	for _, c := range cols {
		if strings.Contains(strings.ToLower(c), "id") {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of indexed rows.
func (c *CrossRef) Len() int { return c.rows }

// Lookup finds the row for an article, by identifier first and then by
// normalized title.
func (c *CrossRef) Lookup(id, title string) (Row, bool) {
	if c == nil {
		return nil, false
	}
	if row, ok := c.byID[records.NormalizeID(id, c.prefix)]; ok && id != "" {
		return row, true
	}
	if t := records.NormalizeTitle(title); t != "" {
		if row, ok := c.byTitle[t]; ok {
			return row, true
		}
	}
	return nil, false
}
