package records

import (
	"fmt"
	"io"
	"strings"
)

// ParseBibTeX reads BibTeX entries from r. Only the descriptive fields the
// report uses are kept; @comment, @string and @preamble blocks are skipped.
func ParseBibTeX(r io.Reader) ([]Article, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bibtex: %w", err)
	}
	p := &bibParser{src: string(data)}

	var articles []Article
	for {
		entryType, ok := p.nextEntry()
		if !ok {
			break
		}
		switch strings.ToLower(entryType) {
		case "comment", "string", "preamble":
			if _, err := p.skipBlock(); err != nil {
				return nil, err
			}
			continue
		}
		a, err := p.entry()
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, nil
}

type bibParser struct {
	src string
	pos int
}

// nextEntry advances past the next '@type' and its opening brace.
func (p *bibParser) nextEntry() (string, bool) {
	for {
		at := strings.IndexByte(p.src[p.pos:], '@')
		if at < 0 {
			return "", false
		}
		p.pos += at + 1
		open := strings.IndexAny(p.src[p.pos:], "{(")
		if open < 0 {
			return "", false
		}
		entryType := strings.TrimSpace(p.src[p.pos : p.pos+open])
		if entryType == "" || strings.ContainsAny(entryType, " \n\t@") {
			continue
		}
		p.pos += open + 1
		return entryType, true
	}
}

func (p *bibParser) skipBlock() (string, error) {
	depth := 1
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '{', '(':
			depth++
		case '}', ')':
			depth--
			if depth == 0 {
				body := p.src[start:p.pos]
				p.pos++
				return body, nil
			}
		}
		p.pos++
	}
	return "", fmt.Errorf("bibtex: unterminated block at offset %d", start)
}

func (p *bibParser) entry() (Article, error) {
	comma := strings.IndexByte(p.src[p.pos:], ',')
	if comma < 0 {
		return Article{}, fmt.Errorf("bibtex: entry without key at offset %d", p.pos)
	}
	a := Article{ArticleID: strings.TrimSpace(p.src[p.pos : p.pos+comma])}
	p.pos += comma + 1

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return Article{}, fmt.Errorf("bibtex: unterminated entry %q", a.ArticleID)
		}
		if c := p.src[p.pos]; c == '}' || c == ')' {
			p.pos++
			return a, nil
		}
		if p.src[p.pos] == ',' {
			p.pos++
			continue
		}

		eq := strings.IndexByte(p.src[p.pos:], '=')
		if eq < 0 {
			return Article{}, fmt.Errorf("bibtex: field without value in %q", a.ArticleID)
		}
		name := strings.ToLower(strings.TrimSpace(p.src[p.pos : p.pos+eq]))
		p.pos += eq + 1
		p.skipSpace()

		value, err := p.value()
		if err != nil {
			return Article{}, fmt.Errorf("bibtex: field %s in %q: %w", name, a.ArticleID, err)
		}
		setField(&a, name, value)
	}
}

func (p *bibParser) value() (string, error) {
	if p.pos >= len(p.src) {
		return "", io.ErrUnexpectedEOF
	}
	switch p.src[p.pos] {
	case '{':
		p.pos++
		body, err := p.braced()
		return strings.TrimSpace(body), err
	case '"':
		p.pos++
		end := strings.IndexByte(p.src[p.pos:], '"')
		if end < 0 {
			return "", io.ErrUnexpectedEOF
		}
		v := p.src[p.pos : p.pos+end]
		p.pos += end + 1
		return strings.TrimSpace(v), nil
	default:
		end := strings.IndexAny(p.src[p.pos:], ",})")
		if end < 0 {
			return "", io.ErrUnexpectedEOF
		}
		v := p.src[p.pos : p.pos+end]
		p.pos += end
		return strings.TrimSpace(v), nil
	}
}

// braced reads until the brace matching one already consumed.
func (p *bibParser) braced() (string, error) {
	depth := 1
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				body := p.src[start:p.pos]
				p.pos++
				return body, nil
			}
		}
		p.pos++
	}
	return "", io.ErrUnexpectedEOF
}

func (p *bibParser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func setField(a *Article, name, value string) {
	switch name {
	case "title":
		a.Title = value
	case "year":
		a.Year = value
	case "author":
		a.Author = value
	case "url":
		a.URL = value
	case "abstract":
		a.Abstract = value
	case "note":
		a.Note = value
	}
}
