package aip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Document is one airport's AIP text, ready for parsing.
type Document struct {
	ICAO      string
	Text      string
	UpdatedAt time.Time
}

// DocumentSource yields AIP documents newer than a cursor timestamp.
type DocumentSource interface {
	Fetch(ctx context.Context, since time.Time) ([]Document, error)
}

// DirectorySource reads AIP text from a directory of per-airport files
// named <ICAO>.txt or <ICAO>.html. File modification time drives the
// incremental cursor; HTML files are stripped to visible text.
type DirectorySource struct {
	dir string
}

// NewDirectorySource creates a source over the given directory.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

// Fetch returns documents modified after since, sorted by ICAO.
func (s *DirectorySource) Fetch(ctx context.Context, since time.Time) ([]Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read aip dir: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".txt" && ext != ".html" {
			continue
		}
		icao := strings.ToUpper(strings.TrimSuffix(name, ext))
		if len(icao) != 4 {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		if !info.ModTime().After(since) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		text := string(data)
		if ext == ".html" {
			text, err = StripHTML(text)
			if err != nil {
				return nil, fmt.Errorf("strip %s: %w", name, err)
			}
		}

		docs = append(docs, Document{
			ICAO:      icao,
			Text:      text,
			UpdatedAt: info.ModTime(),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ICAO < docs[j].ICAO })
	return docs, nil
}
