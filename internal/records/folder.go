package records

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// File names inside a screening export folder.
const (
	BibTeXFile         = "articles.bib"
	CustomizationsFile = "customizations_log.csv"
)

// FolderLoader reads screening export folders (one BibTeX file plus one
// customizations log each) into record sets.
type FolderLoader struct {
	dataDir string
	prefix  string
	logger  *zap.Logger
}

// NewFolderLoader creates a loader rooted at dataDir.
func NewFolderLoader(dataDir, prefix string, logger *zap.Logger) *FolderLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderLoader{dataDir: dataDir, prefix: prefix, logger: logger}
}

// LoadFolder parses one export folder. A missing folder or missing file is
// logged and yields what is available; a corrupt file is an error.
func (l *FolderLoader) LoadFolder(name string) ([]Article, error) {
	dir := filepath.Join(l.dataDir, name)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("export folder does not exist", zap.String("folder", dir))
		return nil, nil
	}

	var articles []Article
	bibPath := filepath.Join(dir, BibTeXFile)
	if f, err := os.Open(bibPath); err == nil {
		articles, err = ParseBibTeX(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", bibPath, err)
		}
		l.logger.Info("parsed bibtex", zap.String("file", bibPath), zap.Int("articles", len(articles)))
	} else if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("bibtex file not found", zap.String("file", bibPath))
	} else {
		return nil, fmt.Errorf("opening %s: %w", bibPath, err)
	}

	csvPath := filepath.Join(dir, CustomizationsFile)
	if f, err := os.Open(csvPath); err == nil {
		annotations, err := ParseCustomizations(f, l.prefix)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", csvPath, err)
		}
		matched := Attach(articles, annotations, l.prefix)
		l.logger.Info("attached customizations",
			zap.String("file", csvPath),
			zap.Int("annotated_ids", len(annotations)),
			zap.Int("matched", matched))
	} else if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("customizations log not found", zap.String("file", csvPath))
	} else {
		return nil, fmt.Errorf("opening %s: %w", csvPath, err)
	}

	return articles, nil
}

// LoadFolders parses several folders concurrently and concatenates the
// results in the order the folders were given.
func (l *FolderLoader) LoadFolders(ctx context.Context, names []string) ([]Article, error) {
	parts := make([][]Article, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			articles, err := l.LoadFolder(name)
			if err != nil {
				return err
			}
			parts[i] = articles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Article
	for _, p := range parts {
		all = append(all, p...)
	}
	return all, nil
}
