package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"

	"auditor/internal/evidence"
)

// DefaultDir is where reports land when no output path is given.
const DefaultDir = "audit"

// SlugLimit caps the repository slug in default report names.
const SlugLimit = 50

var nonWord = regexp.MustCompile(`[^\w\-]`)

// Slug derives a file-name-safe identifier from a repository URL or path:
// its last path segment with non-word characters replaced.
func Slug(repo string) string {
	repo = strings.TrimRight(strings.TrimSpace(repo), "/")
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		repo = repo[i+1:]
	}
	s := nonWord.ReplaceAllString(repo, "_")
	if len(s) > SlugLimit {
		s = s[:SlugLimit]
	}
	if s == "" {
		return "repo"
	}
	return s
}

// DefaultPath returns <dir>/report_<slug>.md.
func DefaultPath(dir, repo string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, "report_"+Slug(repo)+".md")
}

// Write renders rep to path. The extension picks the format: .html, .pdf
// or Markdown for anything else.
func Write(ctx context.Context, rep *evidence.Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		html, err := RenderHTML(rep)
		if err != nil {
			return err
		}
		return os.WriteFile(path, html, 0o644)
	case ".pdf":
		html, err := RenderHTML(rep)
		if err != nil {
			return err
		}
		return WritePDF(ctx, html, path)
	default:
		return os.WriteFile(path, []byte(Markdown(rep)), 0o644)
	}
}

// RenderTerminal renders rep for an ANSI terminal at the given wrap width.
func RenderTerminal(rep *evidence.Report, width int) (string, error) {
	return RenderMarkdownTerminal(Markdown(rep), width)
}

// RenderMarkdownTerminal renders already-rendered report Markdown.
func RenderMarkdownTerminal(text string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create terminal renderer: %w", err)
	}
	return r.Render(text)
}
