package category

import (
	"sort"
	"strings"
)

// Role is the meaning of a spreadsheet field for the report.
type Role string

const (
	RolePaperID          Role = "paper_id"
	RoleTitle            Role = "title"
	RoleYear             Role = "year"
	RoleDecision         Role = "decision"
	RoleExclusionReason  Role = "exclusion_reason"
	RoleReproducedStatus Role = "reproduced_status"
	RoleCodebase         Role = "codebase"
	RoleRepository       Role = "repository"
	RoleLink             Role = "link"
)

// FieldRule assigns a role to a field whose lower-cased name contains every
// term, or equals the single term when Exact is set.
type FieldRule struct {
	Role  Role
	Terms []string
	Exact bool
}

// Match reports whether the rule applies to a field name.
func (r FieldRule) Match(name string) bool {
	lower := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if r.Exact {
		return len(r.Terms) == 1 && lower == r.Terms[0]
	}
	for _, t := range r.Terms {
		if !strings.Contains(lower, t) {
			return false
		}
	}
	return len(r.Terms) > 0
}

// FieldRules is the ordered rule table for data-extraction spreadsheets and
// cross-reference sheets. Earlier rules win.
var FieldRules = []FieldRule{
	{Role: RoleExclusionReason, Terms: []string{"if exclude", "reason"}},
	{Role: RoleDecision, Terms: []string{"final decision to include / exclude"}},
	{Role: RoleDecision, Terms: []string{"final decision"}},
	{Role: RolePaperID, Terms: []string{"paper id"}},
	{Role: RolePaperID, Terms: []string{"paper_id"}},
	{Role: RolePaperID, Terms: []string{"rayyan"}},
	{Role: RolePaperID, Terms: []string{"id"}, Exact: true},
	{Role: RoleTitle, Terms: []string{"paper title"}},
	{Role: RoleTitle, Terms: []string{"title"}},
	{Role: RoleYear, Terms: []string{"publication year"}},
	{Role: RoleYear, Terms: []string{"year"}},
	{Role: RoleReproducedStatus, Terms: []string{"were the results reproduced"}},
	{Role: RoleCodebase, Terms: []string{"has an associated codebase"}},
	{Role: RoleCodebase, Terms: []string{"codebase"}},
	{Role: RoleRepository, Terms: []string{"repository"}},
	{Role: RoleLink, Terms: []string{"url"}},
	{Role: RoleLink, Terms: []string{"link"}},
	{Role: RoleLink, Terms: []string{"github"}},
	{Role: RoleLink, Terms: []string{"repository"}},
	{Role: RoleLink, Terms: []string{"repo"}},
	{Role: RoleLink, Terms: []string{"code"}},
	{Role: RoleLink, Terms: []string{"source"}},
}

// Fields is the resolved role -> field name assignment for one field set.
type Fields map[Role]string

// ResolveFields evaluates FieldRules against a set of field names. Each role
// gets at most one field, each field at most one role, and names are tried
// in sorted order so the result does not depend on map iteration.
func ResolveFields(names []string) Fields {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	out := make(Fields)
	used := make(map[string]bool)
	for _, rule := range FieldRules {
		if _, done := out[rule.Role]; done || rule.Role == RoleLink {
			continue
		}
		for _, name := range sorted {
			if used[name] || !rule.Match(name) {
				continue
			}
			out[rule.Role] = name
			used[name] = true
			break
		}
	}
	return out
}

// FieldsFor returns every field name that any rule of role matches, in rule
// order and then name order, without repeats.
func FieldsFor(names []string, role Role) []string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var out []string
	seen := make(map[string]bool)
	for _, rule := range FieldRules {
		if rule.Role != role {
			continue
		}
		for _, name := range sorted {
			if !seen[name] && rule.Match(name) {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
