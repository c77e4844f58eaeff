// Package indexer builds a chunked text index over a source tree. Index
// builds are expensive and run on the background task queue; lookups feed
// context entries into completion requests.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"

	"assistd/internal/common/fsutil"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultMaxFileBytes = 1 << 20
)

// Config controls one index build.
type Config struct {
	// Root directory to walk.
	Root string
	// Include globs matched against slash-separated paths relative to Root.
	// Empty means everything.
	Include []string
	// Exclude globs; a match skips the file.
	Exclude []string
	// ChunkSize is the target chunk length in bytes.
	ChunkSize int
	// ChunkOverlap is how much consecutive chunks overlap.
	ChunkOverlap int
	// MaxFileBytes skips files larger than this.
	MaxFileBytes int64
	// StorePath, when set, is where Build persists the index as JSON.
	StorePath string
}

// Chunk is one indexed slice of a source file.
type Chunk struct {
	File   string `json:"file"`
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

// Index is the persisted build output.
type Index struct {
	Root   string    `json:"root"`
	Built  time.Time `json:"built"`
	Files  int       `json:"files"`
	Chunks []Chunk   `json:"chunks"`
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = defaultChunkOverlap
		if c.ChunkOverlap >= c.ChunkSize {
			c.ChunkOverlap = c.ChunkSize / 5
		}
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = defaultMaxFileBytes
	}
}

// Build walks cfg.Root, chunks every matching text file and returns the
// index, persisting it to cfg.StorePath when set. The context is checked
// between files so a shutting-down queue can stop a long build.
func Build(ctx context.Context, cfg Config) (*Index, error) {
	cfg.applyDefaults()
	root, err := fsutil.ExpandHome(cfg.Root)
	if err != nil {
		return nil, err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	ix := &Index{Root: root, Built: time.Now()}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matches(cfg.Include, rel, true) || matches(cfg.Exclude, rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > cfg.MaxFileBytes {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if bytes.IndexByte(b, 0) >= 0 {
			// binary file
			return nil
		}
		for _, ch := range split(string(b), cfg.ChunkSize, cfg.ChunkOverlap) {
			ix.Chunks = append(ix.Chunks, Chunk{File: rel, Offset: ch.offset, Text: ch.text})
		}
		ix.Files++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if cfg.StorePath != "" {
		if err := ix.save(cfg.StorePath); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// matches reports whether rel matches any of the patterns. empty is the
// result for an empty pattern list.
func matches(patterns []string, rel string, empty bool) bool {
	if len(patterns) == 0 {
		return empty
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

type piece struct {
	offset int
	text   string
}

// split cuts text into size-byte chunks with the given overlap.
func split(text string, size, overlap int) []piece {
	var out []piece
	step := size - overlap
	for off := 0; off < len(text); off += step {
		end := off + size
		if end > len(text) {
			end = len(text)
		}
		out = append(out, piece{offset: off, text: text[off:end]})
		if end == len(text) {
			break
		}
	}
	return out
}

func (ix *Index) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index dir: %w", err)
	}
	b, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a persisted index.
func Load(path string) (*Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ix Index
	if err := json.Unmarshal(b, &ix); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &ix, nil
}

// TopK returns the text of the k chunks sharing the most terms with query,
// best first. Plain term overlap; good enough to seed completion context.
func (ix *Index) TopK(query string, k int) []string {
	if k <= 0 || len(ix.Chunks) == 0 {
		return nil
	}
	qterms := terms(query)
	if len(qterms) == 0 {
		return nil
	}
	type scored struct {
		idx   int
		score int
	}
	var ranked []scored
	for i, ch := range ix.Chunks {
		s := 0
		ct := terms(ch.Text)
		for t := range qterms {
			if ct[t] {
				s++
			}
		}
		if s > 0 {
			ranked = append(ranked, scored{idx: i, score: s})
		}
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = ix.Chunks[r.idx].Text
	}
	return out
}

func terms(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) > 2 {
			out[f] = true
		}
	}
	return out
}
