// Package corpus lists the stored images a query is compared against.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/face-search/internal/facematch"
	"golang.org/x/text/unicode/norm"
)

// Dir is a corpus backed by the files of one directory.
// The directory is re-listed on every search; subdirectories are not descended.
type Dir struct {
	path       string
	extensions []string
}

// NewDir creates a corpus over path. Only files with one of extensions
// (lowercase, with dot) are listed; no extensions means every file.
func NewDir(path string, extensions []string) *Dir {
	return &Dir{path: path, extensions: extensions}
}

// Path returns the corpus directory.
func (d *Dir) Path() string {
	return d.path
}

// NormalizeName returns the NFC form of a file name. File systems that store
// decomposed names (e.g. HFS+) would otherwise report "Jiří.jpg" in a
// different byte form than the one users upload or link to.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ListCandidates returns the candidate files in name order.
func (d *Dir) ListCandidates(ctx context.Context) ([]facematch.CandidateSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", facematch.ErrStorage, err)
	}

	candidates := make([]facematch.CandidateSource, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !d.accepts(e.Name()) {
			continue
		}
		candidates = append(candidates, &file{
			id:   NormalizeName(e.Name()),
			path: filepath.Join(d.path, e.Name()),
		})
	}
	return candidates, nil
}

func (d *Dir) accepts(name string) bool {
	if len(d.extensions) == 0 {
		return true
	}
	return slices.Contains(d.extensions, strings.ToLower(filepath.Ext(name)))
}

// file is a candidate read from disk on demand.
type file struct {
	id   string
	path string
}

func (f *file) ID() string { return f.id }

func (f *file) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.id, err)
	}
	return data, nil
}
