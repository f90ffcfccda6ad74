package store

// schemaVersionV1 is the initial history schema.
const schemaVersionV1 = 1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	repo_url      TEXT NOT NULL,
	document_path TEXT,
	rubric_name   TEXT,
	oracle        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	overall_score REAL NOT NULL,
	total_points  INTEGER,
	max_points    INTEGER,
	degraded      INTEGER NOT NULL DEFAULT 0,
	report_path   TEXT,
	report        BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);

CREATE TABLE IF NOT EXISTS criteria (
	run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	dimension_id   TEXT NOT NULL,
	dimension_name TEXT NOT NULL,
	final_score    INTEGER NOT NULL,
	points         INTEGER,
	dissent        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, dimension_id)
);
`
