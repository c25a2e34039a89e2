// Package projection derives the table, chart and flow-diagram views of an
// aggregation from one shared row set.
package projection

import (
	"errors"
	"fmt"

	"github.com/TobiSchelling/SLRReport/internal/aggregate"
)

// Flow node names.
const (
	NodeTotal      = "Total hits"
	NodeDuplicates = "Duplicates removed"
	NodeAfterDedup = "After dedup"
	NodeIncluded   = "Included (within scope)"
	NodeRemainder  = "Other reasons"
)

// ErrInvalidK is returned when fewer than one category is requested.
var ErrInvalidK = errors.New("top-k must be at least 1")

// ErrReservedCategory is returned when a displayed category shares its name
// with a fixed flow node.
var ErrReservedCategory = errors.New("category name is reserved for a flow node")

var reservedNodes = map[string]bool{
	NodeTotal:      true,
	NodeDuplicates: true,
	NodeAfterDedup: true,
	NodeIncluded:   true,
	NodeRemainder:  true,
}

// IntegrityError reports totals that cannot be reconciled. It is never
// clamped away: a negative remainder means double counting or a stale
// overview.
type IntegrityError struct {
	Node     string
	Expected int
	Actual   int
	Detail   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error at %q: expected %d, got %d: %s", e.Node, e.Expected, e.Actual, e.Detail)
}

// Row is one displayed category. The remainder row has Remainder set.
type Row struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Remainder  bool    `json:"remainder,omitempty"`
}

// Series is the chart view.
type Series struct {
	Labels      []string  `json:"labels"`
	Values      []int     `json:"values"`
	Percentages []float64 `json:"percentages"`
}

// Node is a flow-diagram node. Value is the node's incoming total.
type Node struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Link is a flow-diagram edge between node indexes.
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
	Value  int `json:"value"`
}

// Flow is the flow-diagram view.
type Flow struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Views are the presentation views of one aggregation. Table is the shared
// row set itself.
type Views struct {
	K        int      `json:"k"`
	Overview Overview `json:"overview"`
	Rows     []Row    `json:"rows"`
	Table    []Row    `json:"-"`
	Chart    Series   `json:"chart"`
	Flow     Flow     `json:"flow"`
}

// Project builds every view from the top-k categories of res plus an
// "Other reasons" remainder computed against the overview's excluded total.
func Project(res *aggregate.Result, overview Overview, k int) (*Views, error) {
	if k <= 0 {
		return nil, fmt.Errorf("projecting %d categories: %w", k, ErrInvalidK)
	}

	excluded := overview.Excluded
	if excluded <= 0 {
		excluded = res.Total
	}

	ranked := res.Ranked()
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	rows := make([]Row, 0, len(ranked)+1)
	shown := 0
	for _, r := range ranked {
		if reservedNodes[r.Category] {
			return nil, fmt.Errorf("projecting category %q: %w", r.Category, ErrReservedCategory)
		}
		rows = append(rows, Row{Category: r.Category, Count: r.Count, Percentage: pct(r.Count, excluded)})
		shown += r.Count
	}
	remainder := excluded - shown
	if remainder < 0 {
		return nil, &IntegrityError{
			Node:     NodeRemainder,
			Expected: excluded,
			Actual:   shown,
			Detail:   fmt.Sprintf("top %d categories sum to more than the excluded total", k),
		}
	}
	rows = append(rows, Row{Category: NodeRemainder, Count: remainder, Percentage: pct(remainder, excluded), Remainder: true})

	flow, err := buildFlow(rows, overview, excluded)
	if err != nil {
		return nil, err
	}

	v := &Views{
		K:        k,
		Overview: overview,
		Rows:     rows,
		Table:    rows,
		Chart:    buildSeries(rows),
		Flow:     flow,
	}
	v.Overview.Excluded = excluded
	return v, nil
}

func buildSeries(rows []Row) Series {
	s := Series{
		Labels:      make([]string, len(rows)),
		Values:      make([]int, len(rows)),
		Percentages: make([]float64, len(rows)),
	}
	for i, r := range rows {
		s.Labels[i] = r.Category
		s.Values[i] = r.Count
		s.Percentages[i] = r.Percentage
	}
	return s
}

func buildFlow(rows []Row, o Overview, excluded int) (Flow, error) {
	if o.TotalRetrieved == 0 && o.AfterDedup == 0 {
		o.AfterDedup = o.Included + excluded
		o.TotalRetrieved = o.AfterDedup
	}
	dups := o.Duplicates()
	if dups < 0 {
		return Flow{}, &IntegrityError{
			Node:     NodeTotal,
			Expected: o.TotalRetrieved,
			Actual:   o.AfterDedup,
			Detail:   "more records after de-duplication than hits retrieved",
		}
	}
	if o.Included+excluded != o.AfterDedup {
		return Flow{}, &IntegrityError{
			Node:     NodeAfterDedup,
			Expected: o.AfterDedup,
			Actual:   o.Included + excluded,
			Detail:   "included plus excluded does not match the de-duplicated total",
		}
	}

	var f Flow
	add := func(name string, value int) int {
		f.Nodes = append(f.Nodes, Node{Name: name, Value: value})
		return len(f.Nodes) - 1
	}
	link := func(src, dst, value int) {
		if value > 0 {
			f.Links = append(f.Links, Link{Source: src, Target: dst, Value: value})
		}
	}

	total := add(NodeTotal, o.TotalRetrieved)
	dup := add(NodeDuplicates, dups)
	after := add(NodeAfterDedup, o.AfterDedup)
	link(total, dup, dups)
	link(total, after, o.AfterDedup)

	included := add(NodeIncluded, o.Included)
	link(after, included, o.Included)
	for _, r := range rows {
		link(after, add(r.Category, r.Count), r.Count)
	}

	if err := f.checkConservation(); err != nil {
		return Flow{}, err
	}
	return f, nil
}

// checkConservation verifies that every node with outgoing links passes on
// exactly its incoming value.
func (f Flow) checkConservation() error {
	out := make(map[int]int)
	for _, l := range f.Links {
		out[l.Source] += l.Value
	}
	for i, n := range f.Nodes {
		sent, ok := out[i]
		if !ok {
			continue
		}
		if sent != n.Value {
			return &IntegrityError{
				Node:     n.Name,
				Expected: n.Value,
				Actual:   sent,
				Detail:   "outgoing links do not add up to the node value",
			}
		}
	}
	return nil
}

// Verify re-checks that the table, chart and flow views agree on every
// category and that the flow conserves its totals.
func (v *Views) Verify() error {
	if len(v.Table) != len(v.Rows) || len(v.Chart.Values) != len(v.Rows) {
		return &IntegrityError{
			Node:     "views",
			Expected: len(v.Rows),
			Actual:   len(v.Chart.Values),
			Detail:   "views disagree on the number of categories",
		}
	}

	flowCounts := make(map[string]int)
	for _, n := range v.Flow.Nodes {
		if _, dup := flowCounts[n.Name]; dup {
			return &IntegrityError{Node: n.Name, Expected: 1, Actual: 2, Detail: "flow node name is not unique"}
		}
		flowCounts[n.Name] = n.Value
	}
	for i, r := range v.Rows {
		if v.Table[i] != r {
			return &IntegrityError{Node: r.Category, Expected: r.Count, Actual: v.Table[i].Count, Detail: "table row differs"}
		}
		if v.Chart.Labels[i] != r.Category || v.Chart.Values[i] != r.Count {
			return &IntegrityError{Node: r.Category, Expected: r.Count, Actual: v.Chart.Values[i], Detail: "chart value differs"}
		}
		if got, ok := flowCounts[r.Category]; !ok || got != r.Count {
			return &IntegrityError{Node: r.Category, Expected: r.Count, Actual: got, Detail: "flow node differs"}
		}
	}
	return v.Flow.checkConservation()
}

// Row returns the displayed row for a category.
func (v *Views) Row(category string) (Row, bool) {
	for _, r := range v.Rows {
		if r.Category == category {
			return r, true
		}
	}
	return Row{}, false
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
