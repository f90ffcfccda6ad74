// Package repo implements the repository collaborators of the audit: acquiring
// a working copy, listing its files, reading commit history, and statically
// analysing the orchestration graph, state schema and execution safety of the
// code it contains.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAcquire is wrapped by every acquisition failure.
var ErrAcquire = errors.New("repo: acquire failed")

// AcquireError carries the repository identifier and the underlying cause.
type AcquireError struct {
	URL string
	Err error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.URL, e.Err)
}

// Unwrap exposes both ErrAcquire and the cause to errors.Is.
func (e *AcquireError) Unwrap() []error { return []error{ErrAcquire, e.Err} }

// Commit is one entry of the repository history, oldest first.
type Commit struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Inspector is the set of repository collaborators the collector depends on.
type Inspector interface {
	// Acquire produces a local working copy of url and returns its path.
	Acquire(ctx context.Context, url string) (string, error)
	// ListFiles returns slash-separated paths relative to root, sorted.
	ListFiles(ctx context.Context, root string) ([]string, error)
	// History returns commits oldest first.
	History(ctx context.Context, root string) ([]Commit, error)
	AnalyzeStructure(ctx context.Context, root string) Structure
	AnalyzeStateSchema(ctx context.Context, root string) StateSchema
	ScanSafety(ctx context.Context, root string) ([]SafetyFinding, error)
}
