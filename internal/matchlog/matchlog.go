// Package matchlog reads the match records and per-match event logs the game
// server writes to disk.
package matchlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ernie/crewvoice/internal/domain"
)

// ErrNotFound is returned when no record exists for a match
var ErrNotFound = errors.New("match record not found")

// Provider supplies finished match records and their event logs
type Provider interface {
	Match(ctx context.Context, id int64) (*domain.Match, error)
	Events(ctx context.Context, m *domain.Match) ([]domain.MatchEvent, error)
}

// Dir reads match files from a directory. A match record is stored as
// <id>.json or <id>.json.gz; its event log path is relative to the directory.
type Dir struct {
	root string
}

// NewDir creates a provider rooted at dir
func NewDir(dir string) *Dir {
	return &Dir{root: dir}
}

// Match reads the record of match id
func (d *Dir) Match(ctx context.Context, id int64) (*domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := filepath.Join(d.root, strconv.FormatInt(id, 10)+".json")
	var m domain.Match
	for _, path := range []string{base, base + ".gz"} {
		err := readJSON(path, &m)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading match %d: %w", id, err)
		}
		if m.ID == 0 {
			m.ID = id
		}
		return &m, nil
	}
	return nil, fmt.Errorf("match %d: %w", id, ErrNotFound)
}

// Events reads the event log of a match
func (d *Dir) Events(ctx context.Context, m *domain.Match) ([]domain.MatchEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.EventFile == "" {
		return nil, fmt.Errorf("match %d has no event file", m.ID)
	}
	path := m.EventFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.root, path)
	}
	var events []domain.MatchEvent
	if err := readJSON(path, &events); err != nil {
		return nil, fmt.Errorf("reading events of match %d: %w", m.ID, err)
	}
	return events, nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return json.NewDecoder(r).Decode(v)
}
