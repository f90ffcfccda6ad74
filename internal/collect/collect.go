// Package collect holds the three evidence collectors. Each reads the
// rubric and run inputs and returns a partial evidence map restricted to the
// dimensions of its own artifact type.
package collect

import (
	"context"
	"log/slog"

	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

// Input is the part of run state a collector reads.
type Input struct {
	RepoURL      string
	RepoPath     string
	DocumentPath string
	Rubric       *rubric.Rubric
}

// Output is a collector's partial update. Only Evidence is always set.
type Output struct {
	Evidence     evidence.Map
	RepoPath     string
	RepoFiles    []string
	DocumentText string
}

// Collector produces evidence for one artifact type.
type Collector interface {
	Name() string
	Collect(ctx context.Context, in Input) Output
}

// ContentLimit caps the excerpt stored in document and vision Evidence.
const ContentLimit = 2000

func dimensions(in Input, target rubric.TargetArtifact) []rubric.Dimension {
	if in.Rubric == nil {
		return nil
	}
	return in.Rubric.ByTarget(target)
}

// missingAll gives every dimension the same zero-confidence Evidence.
func missingAll(dims []rubric.Dimension, location, rationale string) evidence.Map {
	out := make(evidence.Map, len(dims))
	for _, d := range dims {
		out[d.ID] = []evidence.Evidence{evidence.Missing(d.ForensicInstruction, location, rationale)}
	}
	return out
}

func logger(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("collector", name)
}

func successOr(found bool, success, failure string) string {
	if found {
		return success
	}
	return failure
}

func confidence(found bool, hit, miss float64) float64 {
	if found {
		return hit
	}
	return miss
}
