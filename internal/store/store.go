// Package store persists audit history: one row per run plus the per-criterion
// scores, with the full report kept as a JSON payload.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"auditor/internal/evidence"
)

// DefaultDBPath is the default relative path for the history DB. Open
// creates the parent directory.
const DefaultDBPath = ".auditor/history.db"

var (
	// ErrNotFound is returned when no run matches an id or prefix.
	ErrNotFound = errors.New("store: run not found")
	// ErrAmbiguous is returned when an id prefix matches several runs.
	ErrAmbiguous = errors.New("store: ambiguous run id prefix")
)

// Run is one completed audit, normal or degraded.
type Run struct {
	ID           string
	RepoURL      string
	DocumentPath string
	RubricName   string
	Oracle       string
	StartedAt    time.Time
	FinishedAt   time.Time
	OverallScore float64
	TotalPoints  *int
	MaxPoints    *int
	Degraded     bool
	ReportPath   string
	// Report is loaded by GetRun only.
	Report *evidence.Report
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// CriterionScore is one reconciled dimension of a stored run.
type CriterionScore struct {
	RunID         string
	Position      int
	DimensionID   string
	DimensionName string
	FinalScore    int
	Points        *int
	Dissent       bool
}

// Store is the persistence facade. Implementations are SQLite or in-memory.
type Store interface {
	// SaveRun stores r and its criteria. An empty ID is filled with a new
	// UUID.
	SaveRun(ctx context.Context, r *Run) error
	// GetRun loads a run with its report by full id or unique id prefix.
	GetRun(ctx context.Context, idOrPrefix string) (*Run, error)
	// ListRuns returns runs newest first, without reports. limit <= 0 means
	// all.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	// Criteria returns a run's criterion scores in rubric order.
	Criteria(ctx context.Context, runID string) ([]CriterionScore, error)
	Close() error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// criteriaOf flattens a report's criteria for storage.
func criteriaOf(runID string, rep *evidence.Report) []CriterionScore {
	if rep == nil {
		return nil
	}
	out := make([]CriterionScore, len(rep.Criteria))
	for i, c := range rep.Criteria {
		out[i] = CriterionScore{
			RunID:         runID,
			Position:      i,
			DimensionID:   c.DimensionID,
			DimensionName: c.DimensionName,
			FinalScore:    c.FinalScore,
			Points:        c.Points,
			Dissent:       c.HasDissent(),
		}
	}
	return out
}
