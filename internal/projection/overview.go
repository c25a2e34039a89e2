package projection

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/TobiSchelling/SLRReport/internal/aggregate"
)

// Overview holds the screening totals the flow diagram must reconcile with.
type Overview struct {
	TotalRetrieved int `json:"total_results_retrieved"`
	AfterDedup     int `json:"after_dedup_rayyan"`
	Included       int `json:"included_within_scope"`
	Excluded       int `json:"excluded_total"`
}

// Duplicates is the number of hits removed by de-duplication.
func (o Overview) Duplicates() int {
	return o.TotalRetrieved - o.AfterDedup
}

type overviewDoc struct {
	TotalRetrieved *int            `json:"total_results_retrieved"`
	AfterDedup     *int            `json:"after_dedup_rayyan"`
	Included       *int            `json:"included_within_scope"`
	Excluded       json.RawMessage `json:"excluded_out_of_scope"`
	Screening      *overviewDoc    `json:"rayyan_screening"`
}

// LoadOverview reads a screening overview document. The totals may sit at
// the top level or under "rayyan_screening"; excluded_out_of_scope may be a
// number or an object with total_count.
func LoadOverview(path string) (Overview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overview{}, fmt.Errorf("reading overview: %w", err)
	}
	o, err := ParseOverview(data)
	if err != nil {
		return Overview{}, fmt.Errorf("parsing overview %s: %w", path, err)
	}
	return o, nil
}

// ParseOverview decodes a screening overview document.
func ParseOverview(data []byte) (Overview, error) {
	var doc overviewDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Overview{}, err
	}
	src := &doc
	if doc.Screening != nil {
		src = doc.Screening
	}
	if src.TotalRetrieved == nil || src.AfterDedup == nil || src.Included == nil {
		return Overview{}, fmt.Errorf("overview is missing one of total_results_retrieved, after_dedup_rayyan, included_within_scope")
	}

	o := Overview{
		TotalRetrieved: *src.TotalRetrieved,
		AfterDedup:     *src.AfterDedup,
		Included:       *src.Included,
	}
	excluded, err := excludedCount(src.Excluded)
	if err != nil {
		return Overview{}, err
	}
	if excluded < 0 {
		excluded = o.AfterDedup - o.Included
	}
	o.Excluded = excluded
	return o, nil
}

// excludedCount returns -1 when the field is absent.
func excludedCount(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return -1, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var obj struct {
		TotalCount *int `json:"total_count"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("excluded_out_of_scope: %w", err)
	}
	if obj.TotalCount == nil {
		return -1, nil
	}
	return *obj.TotalCount, nil
}

// DeriveOverview builds totals from the loaded record sets when no overview
// document is available. Records the aggregator dropped as reproduced count
// as included.
func DeriveOverview(included int, res *aggregate.Result) Overview {
	in := included + len(res.FilteredReproduced)
	return Overview{
		TotalRetrieved: in + res.Total,
		AfterDedup:     in + res.Total,
		Included:       in,
		Excluded:       res.Total,
	}
}
