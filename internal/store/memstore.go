package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"auditor/internal/evidence"
)

// MemStore is an in-memory Store for tests and one-shot runs without a
// history DB.
type MemStore struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	criteria map[string][]CriterionScore
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{runs: map[string]*Run{}, criteria: map[string][]CriterionScore{}}
}

// SaveRun stores a copy of r; the report is deep-copied through JSON like
// the SQLite payload.
func (s *MemStore) SaveRun(_ context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	cp := *r
	if r.Report != nil {
		data, err := json.Marshal(r.Report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		cp.Report = &evidence.Report{}
		if err := json.Unmarshal(data, cp.Report); err != nil {
			return fmt.Errorf("copy report: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("run %s already stored", r.ID)
	}
	s.runs[r.ID] = &cp
	s.criteria[r.ID] = criteriaOf(r.ID, r.Report)
	return nil
}

func (s *MemStore) GetRun(_ context.Context, idOrPrefix string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idOrPrefix == "" {
		return nil, ErrNotFound
	}
	if r, ok := s.runs[idOrPrefix]; ok {
		cp := *r
		return &cp, nil
	}
	var match *Run
	for id, r := range s.runs {
		if strings.HasPrefix(id, idOrPrefix) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguous, idOrPrefix)
			}
			match = r
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	}
	cp := *match
	return &cp, nil
}

func (s *MemStore) ListRuns(_ context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		cp := *r
		cp.Report = nil
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FinishedAt.Equal(out[j].FinishedAt) {
			return out[i].FinishedAt.After(out[j].FinishedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) Criteria(_ context.Context, runID string) ([]CriterionScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CriterionScore(nil), s.criteria[runID]...), nil
}

func (s *MemStore) Close() error { return nil }
