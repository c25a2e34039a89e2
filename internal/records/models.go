package records

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Annotation is a single reviewer key/value entry attached to an article.
type Annotation struct {
	CreatedAt string `json:"created_at"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// UnmarshalJSON accepts numeric and null values for every field. Exports
// produced from spreadsheets write user ids and flag values as numbers.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw struct {
		CreatedAt flexString `json:"created_at"`
		UserID    flexString `json:"user_id"`
		UserEmail flexString `json:"user_email"`
		Key       flexString `json:"key"`
		Value     flexString `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Annotation{
		CreatedAt: string(raw.CreatedAt),
		UserID:    string(raw.UserID),
		UserEmail: string(raw.UserEmail),
		Key:       string(raw.Key),
		Value:     string(raw.Value),
	}
	return nil
}

// Article is one bibliographic record under review.
type Article struct {
	ArticleID            string            `json:"article_id"`
	Title                string            `json:"title"`
	Author               string            `json:"author"`
	Year                 string            `json:"year"`
	URL                  string            `json:"url"`
	Abstract             string            `json:"abstract"`
	Note                 string            `json:"note"`
	Annotations          []Annotation      `json:"customizations"`
	ExcelData            map[string]string `json:"excel_data,omitempty"`
	RepositoryURL        string            `json:"repository_url,omitempty"`
	ReproductionCategory string            `json:"reproduction_category,omitempty"`
	ExclusionReason      string            `json:"exclusion_reason,omitempty"`
}

// UnmarshalJSON tolerates null and non-string scalars in the descriptive
// fields and in excel_data.
func (a *Article) UnmarshalJSON(data []byte) error {
	var raw struct {
		ArticleID            flexString            `json:"article_id"`
		Title                flexString            `json:"title"`
		Author               flexString            `json:"author"`
		Year                 flexString            `json:"year"`
		URL                  flexString            `json:"url"`
		Abstract             flexString            `json:"abstract"`
		Note                 flexString            `json:"note"`
		Annotations          []Annotation          `json:"customizations"`
		ExcelData            map[string]flexString `json:"excel_data"`
		RepositoryURL        flexString            `json:"repository_url"`
		ReproductionCategory flexString            `json:"reproduction_category"`
		ExclusionReason      flexString            `json:"exclusion_reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Article{
		ArticleID:            strings.TrimSpace(string(raw.ArticleID)),
		Title:                string(raw.Title),
		Author:               string(raw.Author),
		Year:                 string(raw.Year),
		URL:                  string(raw.URL),
		Abstract:             string(raw.Abstract),
		Note:                 string(raw.Note),
		Annotations:          raw.Annotations,
		RepositoryURL:        string(raw.RepositoryURL),
		ReproductionCategory: string(raw.ReproductionCategory),
		ExclusionReason:      string(raw.ExclusionReason),
	}
	if len(raw.ExcelData) > 0 {
		a.ExcelData = make(map[string]string, len(raw.ExcelData))
		for k, v := range raw.ExcelData {
			a.ExcelData[k] = string(v)
		}
	}
	return nil
}

// Field returns a named excel_data value, or "" when absent.
func (a Article) Field(name string) string {
	if a.ExcelData == nil || name == "" {
		return ""
	}
	return a.ExcelData[name]
}

// FieldNames returns the excel_data keys of the article.
func (a Article) FieldNames() []string {
	names := make([]string, 0, len(a.ExcelData))
	for k := range a.ExcelData {
		names = append(names, k)
	}
	return names
}

// flexString decodes any JSON scalar into its textual form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("expected scalar, got %s", data[:1])
	}
	*f = flexString(data)
	return nil
}
