package collect

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/SLRReport/internal/records"
)

// FeedConfig is one saved Atom/RSS export to import.
type FeedConfig struct {
	Path string
	Name string
}

// ParseFeed reads an Atom or RSS document and converts its entries into
// article records. Entries without a title or identifier are skipped.
func ParseFeed(r io.Reader, source string) ([]records.Article, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	if source == "" {
		source = feed.Title
	}

	var articles []records.Article
	for _, item := range feed.Items {
		a, ok := parseItem(item, source)
		if !ok {
			continue
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// ParseFeedFile parses a saved feed export from disk.
func ParseFeedFile(fc FeedConfig) ([]records.Article, error) {
	f, err := os.Open(fc.Path)
	if err != nil {
		return nil, fmt.Errorf("opening feed: %w", err)
	}
	defer f.Close()

	name := fc.Name
	if name == "" {
		name = sourceName(fc.Path)
	}
	articles, err := ParseFeed(f, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fc.Path, err)
	}
	return articles, nil
}

func parseItem(item *gofeed.Item, source string) (records.Article, bool) {
	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = strings.TrimSpace(item.Link)
	}
	title := strings.Join(strings.Fields(item.Title), " ")
	if id == "" || title == "" {
		return records.Article{}, false
	}

	var year string
	if item.PublishedParsed != nil {
		year = strconv.Itoa(item.PublishedParsed.Year())
	} else if item.UpdatedParsed != nil {
		year = strconv.Itoa(item.UpdatedParsed.Year())
	}

	var authors []string
	for _, p := range item.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			authors = append(authors, strings.TrimSpace(p.Name))
		}
	}

	var abstract string
	if item.Description != "" {
		abstract = stripHTML(item.Description)
	} else if item.Content != "" {
		abstract = stripHTML(item.Content)
	}

	a := records.Article{
		ArticleID: id,
		Title:     title,
		Author:    strings.Join(authors, " and "),
		Year:      year,
		URL:       strings.TrimSpace(item.Link),
		Abstract:  abstract,
	}
	if source != "" {
		a.Note = "source: " + source
	}
	return a, true
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}

// sourceName derives a display name from a feed file name, e.g.
// "arxiv_cs_ai.atom" becomes "Arxiv cs ai".
func sourceName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.Join(strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	}), " ")
	if base == "" {
		return path
	}
	return strings.ToUpper(base[:1]) + base[1:]
}
