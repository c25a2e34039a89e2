package records

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"rayyan-242083763":   "242083763",
		"  242083763 ":       "242083763",
		"Rayyan-242083763":   "242083763",
		"rayyan- 242083763":  "242083763",
		"arxiv-2401.00001v2": "arxiv-2401.00001v2",
		"":                   "",
	}
	for in, want := range cases {
		if got := NormalizeID(in, DefaultIDPrefix); got != want {
			t.Errorf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	got := NormalizeTitle("  Neuro-Symbolic   Learning: A Survey! ")
	if got != "neurosymbolic learning a survey" {
		t.Errorf("unexpected normalized title %q", got)
	}
}

func TestParseRecordSet(t *testing.T) {
	data := []byte(`[
	  {"article_id": "rayyan-1", "title": "A", "year": 2021,
	   "customizations": [
	     {"created_at": "2024-01-01", "user_id": 77, "user_email": "r@x.org", "key": "\"__EXR__no-eval\"", "value": 1},
	     {"created_at": null, "user_id": "78", "user_email": "s@x.org", "key": "__EXR__duplicate", "value": "0"}
	   ],
	   "excel_data": {"Publication Year": 2021, "Notes": null}},
	  {"article_id": "rayyan-2", "title": null, "customizations": null}
	]`)

	articles, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	a := articles[0]
	if a.Year != "2021" {
		t.Errorf("expected year '2021', got %q", a.Year)
	}
	if len(a.Annotations) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(a.Annotations))
	}
	if a.Annotations[0].Value != "1" || a.Annotations[0].UserID != "77" {
		t.Errorf("numeric fields not decoded as text: %+v", a.Annotations[0])
	}
	if a.Field("Publication Year") != "2021" {
		t.Errorf("expected excel field '2021', got %q", a.Field("Publication Year"))
	}
	if articles[1].Title != "" || articles[1].Annotations != nil {
		t.Errorf("expected empty optional fields, got %+v", articles[1])
	}
}

func TestParseMalformed(t *testing.T) {
	for _, doc := range []string{`{"article_id": "x"}`, `[{"title": "no id"}]`, `[`} {
		_, err := Parse([]byte(doc))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%s): expected ErrMalformed, got %v", doc, err)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "exclude.json")
	in := []Article{{ArticleID: "rayyan-9", Title: "T", Annotations: []Annotation{{Key: "__EXR__c", Value: "1"}}}}
	if err := Save(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 1 || out[0].Annotations[0].Key != "__EXR__c" {
		t.Errorf("unexpected round trip result: %+v", out)
	}
}

func TestIndexAndDedupe(t *testing.T) {
	articles := []Article{{ArticleID: "rayyan-1"}, {ArticleID: "1"}, {ArticleID: "rayyan-2"}}
	idx := Index(articles, DefaultIDPrefix)
	if idx["1"] != 0 || idx["2"] != 2 {
		t.Errorf("unexpected index %v", idx)
	}
	if got := Dedupe(articles, DefaultIDPrefix); len(got) != 2 {
		t.Errorf("expected 2 articles after dedupe, got %d", len(got))
	}
}

const sampleBib = `
@comment{exported by the screening tool}
@article{rayyan-242083763,
  title={Learning {Logic} Programs},
  author={Doe, Jane and Roe, Rick},
  year={2023},
  url={https://example.org/paper},
  abstract={We combine
neural and symbolic methods.},
  note={RAYYAN-INCLUSION: {"Jane"=>"Included"} | github: https://github.com/x/y}
}

@article{rayyan-2,
  title = "Quoted Title",
  year = 2020
}
`

func TestParseBibTeX(t *testing.T) {
	articles, err := ParseBibTeX(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(articles))
	}
	a := articles[0]
	if a.ArticleID != "rayyan-242083763" {
		t.Errorf("unexpected id %q", a.ArticleID)
	}
	if a.Title != "Learning {Logic} Programs" {
		t.Errorf("unexpected title %q", a.Title)
	}
	if !strings.Contains(a.Abstract, "neural and symbolic") {
		t.Errorf("multi-line abstract lost: %q", a.Abstract)
	}
	if !strings.Contains(a.Note, "github.com/x/y") {
		t.Errorf("note lost: %q", a.Note)
	}
	if articles[1].Title != "Quoted Title" || articles[1].Year != "2020" {
		t.Errorf("unexpected second entry %+v", articles[1])
	}
}

func TestParseBibTeXUnterminated(t *testing.T) {
	_, err := ParseBibTeX(strings.NewReader("@article{x, title={oops"))
	if err == nil {
		t.Error("expected error for unterminated entry")
	}
}

const sampleCSV = `article_id,created_at,user_id,user_email,key,value
242083763,2024-03-01,1,a@x.org,"""__EXR__no-codebase""",1
242083763,2024-03-02,2,b@x.org,"""__EXR__no-codebase""",1
5,2024-03-02,2,b@x.org,__EXR__off-topic,1
`

func TestParseCustomizations(t *testing.T) {
	got, err := ParseCustomizations(strings.NewReader(sampleCSV), DefaultIDPrefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got["242083763"]) != 2 {
		t.Fatalf("expected 2 entries for 242083763, got %d", len(got["242083763"]))
	}
	if got["242083763"][0].Key != `"__EXR__no-codebase"` {
		t.Errorf("quoted key not preserved: %q", got["242083763"][0].Key)
	}
}

func TestParseCustomizationsMissingColumn(t *testing.T) {
	_, err := ParseCustomizations(strings.NewReader("article_id,key\n1,x\n"), DefaultIDPrefix)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestFolderLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "excluded", BibTeXFile), sampleBib)
	writeFile(t, filepath.Join(dir, "excluded", CustomizationsFile), sampleCSV)
	writeFile(t, filepath.Join(dir, "maybe", BibTeXFile), "@article{rayyan-5, title={Other}}\n")

	loader := NewFolderLoader(dir, DefaultIDPrefix, nil)
	articles, err := loader.LoadFolders(context.Background(), []string{"excluded", "maybe", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}
	if articles[0].ArticleID != "rayyan-242083763" || len(articles[0].Annotations) != 2 {
		t.Errorf("annotations not attached in folder order: %+v", articles[0])
	}
	if articles[2].ArticleID != "rayyan-5" {
		t.Errorf("expected maybe folder last, got %q", articles[2].ArticleID)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
