package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"auditor/internal/evidence"

	_ "modernc.org/sqlite"
)

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations. Creates the
// parent directory (e.g. .auditor) if it does not exist.
func Open(path string) (*SqlStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin install tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SqlStore) Close() error { return s.db.Close() }

// SaveRun inserts r and its criteria in one transaction.
func (s *SqlStore) SaveRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	payload, err := json.Marshal(r.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, repo_url, document_path, rubric_name, oracle, started_at, finished_at,
		 overall_score, total_points, max_points, degraded, report_path, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RepoURL, r.DocumentPath, r.RubricName, r.Oracle,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
		r.OverallScore, nullInt(r.TotalPoints), nullInt(r.MaxPoints), r.Degraded, r.ReportPath, payload)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, c := range criteriaOf(r.ID, r.Report) {
		_, err := tx.ExecContext(ctx, `INSERT INTO criteria
			(run_id, position, dimension_id, dimension_name, final_score, points, dissent)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.RunID, c.Position, c.DimensionID, c.DimensionName, c.FinalScore, nullInt(c.Points), c.Dissent)
		if err != nil {
			return fmt.Errorf("insert criterion %s: %w", c.DimensionID, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, repo_url, document_path, rubric_name, oracle, started_at, finished_at,
	overall_score, total_points, max_points, degraded, report_path`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner, extra ...any) (*Run, error) {
	var (
		r                 Run
		doc, rubric, path sql.NullString
		started, finished string
		total, maxPts     sql.NullInt64
	)
	dest := append([]any{&r.ID, &r.RepoURL, &doc, &rubric, &r.Oracle, &started, &finished,
		&r.OverallScore, &total, &maxPts, &r.Degraded, &path}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	r.DocumentPath, r.RubricName, r.ReportPath = nullStr(doc), nullStr(rubric), nullStr(path)
	r.TotalPoints, r.MaxPoints = intPtr(total), intPtr(maxPts)
	var err error
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	return &r, nil
}

// GetRun loads a run by full id or unique prefix.
func (s *SqlStore) GetRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	if idOrPrefix == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+", report FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2",
		idOrPrefix, idOrPrefix+"%", idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		var payload []byte
		r, err := scanRun(rows, &payload)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if len(payload) > 0 && string(payload) != "null" {
			r.Report = &evidence.Report{}
			if err := json.Unmarshal(payload, r.Report); err != nil {
				return nil, fmt.Errorf("decode report: %w", err)
			}
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case found[0].ID == idOrPrefix || len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, idOrPrefix)
	}
}

// ListRuns returns runs newest first.
func (s *SqlStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	q := "SELECT " + runColumns + " FROM runs ORDER BY finished_at DESC, id"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Criteria returns the stored criterion scores of runID in rubric order.
func (s *SqlStore) Criteria(ctx context.Context, runID string) ([]CriterionScore, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, position, dimension_id, dimension_name,
		final_score, points, dissent FROM criteria WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query criteria: %w", err)
	}
	defer rows.Close()
	var out []CriterionScore
	for rows.Next() {
		var c CriterionScore
		var pts sql.NullInt64
		if err := rows.Scan(&c.RunID, &c.Position, &c.DimensionID, &c.DimensionName, &c.FinalScore, &pts, &c.Dissent); err != nil {
			return nil, fmt.Errorf("scan criterion: %w", err)
		}
		c.Points = intPtr(pts)
		out = append(out, c)
	}
	return out, rows.Err()
}

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
