package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TobiSchelling/SLRReport/internal/records"
)

func ann(key, value string) records.Annotation {
	return records.Annotation{Key: key, Value: value, UserEmail: "reviewer@example.org"}
}

func TestExtract_NoAnnotations(t *testing.T) {
	assert.Empty(t, Extract(records.Article{ArticleID: "rayyan-1"}))
}

func TestExtract_DuplicateReviewerFlags(t *testing.T) {
	a := records.Article{ArticleID: "rayyan-1", Annotations: []records.Annotation{
		ann(`"__EXR__no-codebase"`, "1"),
		ann("__EXR__no-codebase", "1"),
	}}
	assert.Equal(t, []string{"no-codebase"}, Extract(a))
}

func TestExtract_ValueMustBeStringOne(t *testing.T) {
	a := records.Article{Annotations: []records.Annotation{
		ann("__EXR__no-eval", "1.0"),
		ann("__EXR__duplicate", "0"),
		ann("__EXR__off-topic", "deleted"),
		ann("__EXR__survey", " 1"),
		ann("__EXR__not-research", "1"),
	}}
	assert.Equal(t, []string{"not-research"}, Extract(a))
}

func TestExtract_IgnoresOtherKeys(t *testing.T) {
	a := records.Article{Annotations: []records.Annotation{
		ann("__label__background", "1"),
		ann("EXR__no-eval", "1"),
		ann(`"__EXR__background article"`, "1"),
	}}
	assert.Equal(t, []string{"background article"}, Extract(a))
}

func TestExtract_OrderIndependent(t *testing.T) {
	a := records.Article{Annotations: []records.Annotation{
		ann("__EXR__no-eval", "1"),
		ann("__EXR__no-codebase", "1"),
	}}
	b := records.Article{Annotations: []records.Annotation{
		ann("__EXR__no-codebase", "1"),
		ann("__EXR__no-eval", "1"),
	}}
	assert.Equal(t, Extract(a), Extract(b))
	assert.Equal(t, []string{"no-codebase", "no-eval"}, Extract(a))
}

func TestFlags_OrCombined(t *testing.T) {
	a := records.Article{Annotations: []records.Annotation{
		ann("__EXR__no-eval", "0"),
		ann("__EXR__no-eval", "1"),
		ann("__EXR__duplicate", "0"),
	}}
	flags := Flags(a)
	assert.True(t, flags["no-eval"])
	assert.False(t, flags["duplicate"])
	assert.Len(t, flags, 2)
}

func TestCode(t *testing.T) {
	code, ok := Code(` "__EXR__c" `)
	assert.True(t, ok)
	assert.Equal(t, "c", code)

	_, ok = Code("note")
	assert.False(t, ok)

	for _, bare := range []string{"__EXR__", `"__EXR__"`, `"__EXR__ "`} {
		_, ok = Code(bare)
		assert.False(t, ok, "key %q", bare)
	}
}

func TestExtract_BareMarkerIgnored(t *testing.T) {
	a := records.Article{Annotations: []records.Annotation{
		ann("__EXR__", "1"),
		ann("__EXR__no-eval", "1"),
	}}
	assert.Equal(t, []string{"no-eval"}, Extract(a))
	assert.NotContains(t, Flags(a), "")
}
