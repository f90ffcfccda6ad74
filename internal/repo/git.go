package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultCloneTimeout bounds a clone when Git.Timeout is zero.
const DefaultCloneTimeout = 120 * time.Second

// Git is the go-git backed Inspector. Every Acquire clones into a fresh
// directory under WorkDir (or the system temp dir), so concurrent audits
// never share a writable tree.
type Git struct {
	// Depth limits clone history. Zero clones full history.
	Depth   int
	Timeout time.Duration
	WorkDir string
	Log     *slog.Logger
}

var _ Inspector = (*Git)(nil)

func (g *Git) logger() *slog.Logger {
	if g.Log != nil {
		return g.Log
	}
	return slog.Default()
}

// Acquire clones url into a new temporary directory. On failure the
// directory is removed and an *AcquireError is returned.
func (g *Git) Acquire(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", &AcquireError{URL: url, Err: errors.New("repository url is empty")}
	}
	dir, err := os.MkdirTemp(g.WorkDir, "auditor-clone-")
	if err != nil {
		return "", &AcquireError{URL: url, Err: fmt.Errorf("create work dir: %w", err)}
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultCloneTimeout
	}
	cloneCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	_, err = git.PlainCloneContext(cloneCtx, dir, false, &git.CloneOptions{
		URL:   url,
		Depth: g.Depth,
		Tags:  git.NoTags,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		if errors.Is(cloneCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("clone timed out after %s: %w", timeout, err)
		}
		return "", &AcquireError{URL: url, Err: err}
	}
	g.logger().Info("repository cloned", "url", url, "path", dir, "elapsed", time.Since(start))
	return dir, nil
}

// ListFiles returns the files tracked at HEAD. Directories that are not git
// repositories (a pre-supplied checkout without .git) are walked instead.
func (g *Git) ListFiles(ctx context.Context, root string) ([]string, error) {
	r, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return walkFiles(ctx, root)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	head, err := r.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := r.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("load HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load HEAD tree: %w", err)
	}
	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func walkFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// History returns the commits reachable from HEAD, oldest first, with short
// ids and single-line messages. A directory without history yields nil.
func (g *Git) History(ctx context.Context, root string) ([]Commit, error) {
	r, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	head, err := r.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	iter, err := r.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, Commit{
			ID:        c.Hash.String()[:7],
			Message:   firstLine(c.Message),
			Timestamp: c.Author.When,
		})
		return nil
	})
	// A shallow clone ends in a parent object that is not present locally.
	if err != nil && !errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func (g *Git) AnalyzeStructure(ctx context.Context, root string) Structure {
	return AnalyzeStructure(ctx, root)
}

func (g *Git) AnalyzeStateSchema(ctx context.Context, root string) StateSchema {
	return AnalyzeStateSchema(ctx, root)
}

func (g *Git) ScanSafety(ctx context.Context, root string) ([]SafetyFinding, error) {
	files, err := g.ListFiles(ctx, root)
	if err != nil {
		return nil, err
	}
	return ScanSafety(ctx, root, files)
}
