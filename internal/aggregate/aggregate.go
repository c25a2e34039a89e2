// Package aggregate computes per-category exclusion statistics for a record
// set. Results are plain values; every derivation returns a new Result.
package aggregate

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/SLRReport/internal/category"
	"github.com/TobiSchelling/SLRReport/internal/criteria"
	"github.com/TobiSchelling/SLRReport/internal/records"
)

// Count is a category tally. Percentage is relative to the excluded total
// and is never rounded before presentation.
type Count struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Combination is a set of two or more categories that co-occur on records.
type Combination struct {
	Categories []string `json:"categories"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
}

// Key returns the combination key used in summaries.
func (c Combination) Key() string {
	return strings.Join(c.Categories, " + ")
}

// Ranked is one category with its tally, as ordered by Result.Ranked.
type Ranked struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Result is the aggregation of one excluded record set.
type Result struct {
	Total              int                 `json:"total_excluded"`
	Criteria           map[string]Count    `json:"individual_criteria_counts"`
	Single             int                 `json:"single_criterion_count"`
	Multi              int                 `json:"multi_criterion_count"`
	None               int                 `json:"no_criterion_count"`
	Combinations       []Combination       `json:"criteria_combinations"`
	Groups             map[string][]string `json:"groups"`
	UnknownCodes       []string            `json:"unknown_codes,omitempty"`
	FilteredReproduced []string            `json:"filtered_reproduced,omitempty"`
}

// Aggregator classifies records and tallies their categories.
type Aggregator struct {
	logger *zap.Logger
}

// New returns an Aggregator. A nil logger discards output.
func New(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

// Categories returns the sorted canonical categories of one article and the
// raw codes that were not in the mapping table.
func Categories(a records.Article) (cats []string, unknown []string) {
	set := make(map[string]struct{})
	for _, code := range criteria.Extract(a) {
		c, ok := category.Lookup(code)
		if !ok {
			unknown = append(unknown, c)
		}
		set[c] = struct{}{}
	}
	cats = make([]string, 0, len(set))
	for c := range set {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats, unknown
}

// Aggregate computes the Result for an excluded record set. Records whose
// reproduction outcome is a reproduced label are dropped first and listed in
// FilteredReproduced.
func (ag *Aggregator) Aggregate(articles []records.Article) *Result {
	res := &Result{
		Criteria: make(map[string]Count),
		Groups:   make(map[string][]string),
	}

	counts := make(map[string]int)
	combos := make(map[string]*Combination)
	unknown := make(map[string]struct{})

	for _, a := range articles {
		if outcome := Outcome(a); category.IsReproduced(outcome) {
			ag.logger.Debug("dropping reproduced record from exclusion breakdown",
				zap.String("article_id", a.ArticleID), zap.String("outcome", outcome))
			res.FilteredReproduced = append(res.FilteredReproduced, a.ArticleID)
			continue
		}
		res.Total++

		cats, codes := Categories(a)
		for _, code := range codes {
			if _, seen := unknown[code]; !seen {
				ag.logger.Info("unknown criterion code, using it as its own category",
					zap.String("code", code), zap.String("article_id", a.ArticleID))
			}
			unknown[code] = struct{}{}
		}

		switch len(cats) {
		case 0:
			res.None++
			continue
		case 1:
			res.Single++
		default:
			res.Multi++
			key := strings.Join(cats, "\x00")
			if c, ok := combos[key]; ok {
				c.Count++
			} else {
				combos[key] = &Combination{Categories: cats, Count: 1}
			}
		}
		for _, c := range cats {
			counts[c]++
			res.Groups[c] = append(res.Groups[c], a.ArticleID)
		}
	}

	for c, n := range counts {
		res.Criteria[c] = Count{Count: n, Percentage: percent(n, res.Total)}
	}
	for _, c := range combos {
		c.Percentage = percent(c.Count, res.Total)
		res.Combinations = append(res.Combinations, *c)
	}
	sortCombinations(res.Combinations)
	for c := range res.Groups {
		sort.Strings(res.Groups[c])
	}
	for code := range unknown {
		res.UnknownCodes = append(res.UnknownCodes, code)
	}
	sort.Strings(res.UnknownCodes)
	sort.Strings(res.FilteredReproduced)

	ag.logger.Debug("aggregated exclusion criteria",
		zap.Int("total", res.Total),
		zap.Int("single", res.Single),
		zap.Int("multi", res.Multi),
		zap.Int("none", res.None),
		zap.Int("categories", len(res.Criteria)))
	return res
}

// Ranked returns the categories ordered by count descending, then name.
func (r *Result) Ranked() []Ranked {
	out := make([]Ranked, 0, len(r.Criteria))
	for c, n := range r.Criteria {
		out = append(out, Ranked{Category: c, Count: n.Count, Percentage: n.Percentage})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CategorySum is the sum of every category count. A record with several
// categories contributes once per category.
func (r *Result) CategorySum() int {
	sum := 0
	for _, n := range r.Criteria {
		sum += n.Count
	}
	return sum
}

// TopCombinations returns at most n combinations in ranked order.
func (r *Result) TopCombinations(n int) []Combination {
	if n < 0 || n >= len(r.Combinations) {
		return r.Combinations
	}
	return r.Combinations[:n]
}

// Merge returns a copy of r with every source category folded into target.
// Counts and percentages are summed, less the records that already carried
// more than one of the folded categories, so a record still counts once per
// category. Groups are unioned and combinations are re-keyed. A combination
// that collapses to a single category is dropped and its records move from
// Multi to Single.
func (r *Result) Merge(target string, sources ...string) *Result {
	fold := make(map[string]bool, len(sources))
	for _, s := range sources {
		if s != target {
			fold[s] = true
		}
	}
	rename := func(c string) string {
		if fold[c] {
			return target
		}
		return c
	}

	out := &Result{
		Total:              r.Total,
		Single:             r.Single,
		Multi:              r.Multi,
		None:               r.None,
		Criteria:           make(map[string]Count, len(r.Criteria)),
		Groups:             make(map[string][]string, len(r.Groups)),
		UnknownCodes:       append([]string(nil), r.UnknownCodes...),
		FilteredReproduced: append([]string(nil), r.FilteredReproduced...),
	}

	for c, n := range r.Criteria {
		dst := rename(c)
		cur := out.Criteria[dst]
		cur.Count += n.Count
		cur.Percentage += n.Percentage
		out.Criteria[dst] = cur
	}

	for c, ids := range r.Groups {
		dst := rename(c)
		out.Groups[dst] = union(out.Groups[dst], ids)
	}

	merged := make(map[string]*Combination)
	var order []string
	for _, combo := range r.Combinations {
		hits := make(map[string]int)
		for _, c := range combo.Categories {
			hits[rename(c)]++
		}
		for dst, k := range hits {
			if k < 2 {
				continue
			}
			cur := out.Criteria[dst]
			cur.Count -= (k - 1) * combo.Count
			cur.Percentage -= float64(k-1) * combo.Percentage
			out.Criteria[dst] = cur
		}
		if len(hits) < 2 {
			out.Multi -= combo.Count
			out.Single += combo.Count
			continue
		}
		cats := make([]string, 0, len(hits))
		for c := range hits {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		key := strings.Join(cats, "\x00")
		if m, ok := merged[key]; ok {
			m.Count += combo.Count
			m.Percentage += combo.Percentage
			continue
		}
		merged[key] = &Combination{Categories: cats, Count: combo.Count, Percentage: combo.Percentage}
		order = append(order, key)
	}
	for _, key := range order {
		out.Combinations = append(out.Combinations, *merged[key])
	}
	sortCombinations(out.Combinations)
	return out
}

// Fold applies a set of merges, given as target -> sources, in target order.
func (r *Result) Fold(folds map[string][]string) *Result {
	targets := make([]string, 0, len(folds))
	for t := range folds {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	out := r
	for _, t := range targets {
		out = out.Merge(t, folds[t]...)
	}
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func sortCombinations(cs []Combination) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Count != cs[j].Count {
			return cs[i].Count > cs[j].Count
		}
		return cs[i].Key() < cs[j].Key()
	})
}

func union(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
