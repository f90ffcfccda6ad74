// Package document implements the report-document collaborators: ingesting a
// document into a chunked, queryable store and extracting embedded images.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrUnreadable is wrapped by every ingestion failure.
	ErrUnreadable = errors.New("document: unreadable")
	// ErrNoVision is returned by a Describer that has no vision model.
	ErrNoVision = errors.New("document: no vision model configured")
)

// Chunking parameters, in characters.
const (
	ChunkSize    = 1500
	ChunkOverlap = 100
	TopK         = 5
)

// NoRelevant is returned by Query when no chunk shares a word with the
// question.
const NoRelevant = "No relevant excerpts found."

const chunkSeparator = "\n\n---\n\n"

// Store is a document split into overlapping chunks.
type Store struct {
	Source string
	Chunks []string
	text   string
}

// NewStore chunks text read from source.
func NewStore(source, text string) *Store {
	return &Store{Source: source, Chunks: Split(text, ChunkSize, ChunkOverlap), text: text}
}

// Text returns the full extracted text. Used by the aggregator's path
// cross-reference, never sent to an oracle whole.
func (s *Store) Text() string { return s.text }

// Query returns up to TopK chunks ranked by how many question words (longer
// than two characters) they contain, joined by a separator, or NoRelevant.
func (s *Store) Query(question string) string {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if len([]rune(w)) > 2 {
			words[w] = true
		}
	}
	type hit struct {
		score int
		idx   int
	}
	var hits []hit
	for i, c := range s.Chunks {
		lc := strings.ToLower(c)
		n := 0
		for w := range words {
			if strings.Contains(lc, w) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{n, i})
		}
	}
	if len(hits) == 0 {
		return NoRelevant
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > TopK {
		hits = hits[:TopK]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = s.Chunks[h.idx]
	}
	return strings.Join(out, chunkSeparator)
}

// Split cuts text into windows of size runes advancing by size-overlap,
// trimming each and dropping blank ones. Text with no content yields the
// single chunk "(no text)".
func Split(text string, size, overlap int) []string {
	if overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size - overlap {
		end := min(start+size, len(runes))
		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			out = append(out, c)
		}
		if end == len(runes) {
			break
		}
	}
	if len(out) == 0 {
		return []string{"(no text)"}
	}
	return out
}

// Image is one embedded image.
type Image struct {
	Page     int
	Name     string
	MIMEType string
	Data     []byte
}

// Reader ingests documents and extracts their images.
type Reader interface {
	Ingest(ctx context.Context, path string) (*Store, error)
	ExtractImages(ctx context.Context, path string) ([]Image, error)
}

// Describer answers a question about an image (the vision oracle).
type Describer interface {
	Describe(ctx context.Context, img Image, question string) (string, error)
}

// Files is the default Reader. PDFs are parsed; Markdown and plain text are
// read as-is.
type Files struct{}

var _ Reader = Files{}

// Ingest loads path into a Store.
func (Files) Ingest(ctx context.Context, path string) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnreadable, path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := pdfText(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
		}
		return NewStore(path, text), nil
	case ".md", ".markdown", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		return NewStore(path, string(data)), nil
	}
	return nil, fmt.Errorf("%w: unsupported document type %q", ErrUnreadable, filepath.Ext(path))
}

// ExtractImages returns the images embedded in a PDF. Other document types
// and vector-only PDFs yield none.
func (Files) ExtractImages(ctx context.Context, path string) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return nil, nil
	}
	return pdfImages(path)
}
