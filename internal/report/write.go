package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/TobiSchelling/SLRReport/internal/aggregate"
)

// Output file names.
const (
	MarkdownFile = "report.md"
	HTMLFile     = "report.html"
	SummaryFile  = "exclusion_analysis_report.txt"
	ResultFile   = "exclusion_analysis.json"
	ViewsFile    = "views.json"
	OutcomesFile = "outcomes.json"
	EnrichedFile = "screening_overview_enriched.json"
)

// Writer writes report artifacts into one directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a writer for dir. A nil logger discards output.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

type artifact struct {
	name   string
	encode func() ([]byte, error)
}

// WriteAll renders d and writes every artifact. overview is the raw
// screening overview document; nil skips the enriched overview. It returns
// the paths written.
func (w *Writer) WriteAll(d *Data, overview []byte) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	markdown := Markdown(d)
	page, err := HTML(d.Title, markdown)
	if err != nil {
		return nil, err
	}

	files := []artifact{
		{MarkdownFile, func() ([]byte, error) { return []byte(markdown), nil }},
		{HTMLFile, func() ([]byte, error) { return page, nil }},
	}
	if d.Result != nil {
		files = append(files,
			artifact{SummaryFile, func() ([]byte, error) { return []byte(Summary(d.Result) + "\n"), nil }},
			artifact{ResultFile, func() ([]byte, error) { return marshal(d.Result) }},
		)
		if overview != nil {
			files = append(files, artifact{EnrichedFile, func() ([]byte, error) { return EnrichOverview(overview, d.Result) }})
		}
	}
	if d.Views != nil {
		files = append(files, artifact{ViewsFile, func() ([]byte, error) { return marshal(d.Views) }})
	}
	if d.Outcomes != nil {
		files = append(files, artifact{OutcomesFile, func() ([]byte, error) { return marshal(d.Outcomes) }})
	}

	var written []string
	for _, f := range files {
		data, err := f.encode()
		if err != nil {
			return written, fmt.Errorf("encoding %s: %w", f.name, err)
		}
		path := filepath.Join(w.dir, f.name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	w.logger.Info("wrote report", zap.String("dir", w.dir), zap.Int("files", len(written)))
	return written, nil
}

// EnrichOverview adds the aggregation to a screening overview document under
// detailed_exclusion_analysis. When the document has a rayyan_screening
// section its excluded_out_of_scope entry is replaced with the total and the
// breakdown. Other keys are kept.
func EnrichOverview(overview []byte, r *aggregate.Result) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(overview, &doc); err != nil {
		return nil, fmt.Errorf("decoding overview: %w", err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	doc["detailed_exclusion_analysis"] = r
	if screening, ok := doc["rayyan_screening"].(map[string]any); ok {
		screening["excluded_out_of_scope"] = map[string]any{
			"total_count": r.Total,
			"breakdown":   r,
		}
	}
	return marshal(doc)
}

func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
