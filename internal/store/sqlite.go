package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("duplicate reference case")
	ErrInvalidCase = errors.New("invalid reference case")
)

type SQLiteStore struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS reference_cases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    label TEXT NOT NULL DEFAULT '',
    a REAL NOT NULL,
    x REAL NOT NULL,
    p REAL NOT NULL,
    q REAL NOT NULL,
    source TEXT NOT NULL DEFAULT 'manual',
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_point ON reference_cases(a, x, source);

CREATE TABLE IF NOT EXISTS check_runs (
    id TEXT PRIMARY KEY,
    method TEXT NOT NULL,
    oracle TEXT NOT NULL,
    cases INTEGER NOT NULL DEFAULT 0,
    failures INTEGER NOT NULL DEFAULT 0,
    mean_err REAL NOT NULL DEFAULT 0,
    p50_err REAL NOT NULL DEFAULT 0,
    p99_err REAL NOT NULL DEFAULT 0,
    max_err REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS check_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    case_id INTEGER NOT NULL DEFAULT 0,
    a REAL NOT NULL,
    x REAL NOT NULL,
    p REAL NOT NULL,
    q REAL NOT NULL,
    want_p REAL NOT NULL,
    want_q REAL NOT NULL,
    rel_err REAL NOT NULL,
    branch TEXT NOT NULL,
    FOREIGN KEY (run_id) REFERENCES check_runs(id)
);

CREATE INDEX IF NOT EXISTS idx_results_run ON check_results(run_id);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AddCase(ctx context.Context, c *ReferenceCase) (*ReferenceCase, error) {
	if err := validateCase(c); err != nil {
		return nil, err
	}
	source := c.Source
	if source == "" {
		source = "manual"
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reference_cases (label, a, x, p, q, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Label, c.A, c.X, c.P, c.Q, source, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reference case: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: a=%g x=%g source=%s", ErrDuplicate, c.A, c.X, source)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &ReferenceCase{
		ID:        id,
		Label:     c.Label,
		A:         c.A,
		X:         c.X,
		P:         c.P,
		Q:         c.Q,
		Source:    source,
		CreatedAt: time.Unix(now, 0),
	}, nil
}

func (s *SQLiteStore) GetCase(ctx context.Context, id int64) (*ReferenceCase, error) {
	var c ReferenceCase
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, label, a, x, p, q, source, created_at FROM reference_cases WHERE id = ?`, id,
	).Scan(&c.ID, &c.Label, &c.A, &c.X, &c.P, &c.Q, &c.Source, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference case: %w", err)
	}

	c.CreatedAt = time.Unix(createdAt, 0)
	return &c, nil
}

func (s *SQLiteStore) ListCases(ctx context.Context) ([]*ReferenceCase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, a, x, p, q, source, created_at
		 FROM reference_cases ORDER BY a, x, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference cases: %w", err)
	}
	defer rows.Close()

	var cases []*ReferenceCase
	for rows.Next() {
		var c ReferenceCase
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Label, &c.A, &c.X, &c.P, &c.Q, &c.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reference case: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		cases = append(cases, &c)
	}

	return cases, rows.Err()
}

func (s *SQLiteStore) CountCases(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_cases`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reference cases: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteCase(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reference_cases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reference case: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ImportCases inserts cases in one transaction and returns how many were new.
// Cases already present for the same (a, x, source) are skipped.
func (s *SQLiteStore) ImportCases(ctx context.Context, cases []*ReferenceCase) (int, error) {
	for i, c := range cases {
		if err := validateCase(c); err != nil {
			return 0, fmt.Errorf("case %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO reference_cases (label, a, x, p, q, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	inserted := 0
	for _, c := range cases {
		source := c.Source
		if source == "" {
			source = "import"
		}
		result, err := stmt.ExecContext(ctx, c.Label, c.A, c.X, c.P, c.Q, source, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert reference case: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return inserted, nil
}

// SaveRun stores a finished run and its results in one transaction, so a
// failed insert leaves no partial run behind.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *CheckRun, results []*CheckResult) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Unix(time.Now().Unix(), 0)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO check_runs (id, method, oracle, cases, failures, mean_err, p50_err, p99_err, max_err, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Method, run.Oracle, run.Cases, run.Failures,
		run.MeanErr, run.P50Err, run.P99Err, run.MaxErr, run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create check run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO check_results (run_id, case_id, a, x, p, q, want_p, want_q, rel_err, branch)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		r.RunID = run.ID
		_, err := stmt.ExecContext(ctx, r.RunID, r.CaseID, r.A, r.X, r.P, r.Q, r.WantP, r.WantQ, r.RelErr, r.Branch)
		if err != nil {
			return fmt.Errorf("failed to record check result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit check run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*CheckRun, error) {
	var run CheckRun
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, method, oracle, cases, failures, mean_err, p50_err, p99_err, max_err, created_at
		 FROM check_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Method, &run.Oracle, &run.Cases, &run.Failures, &run.MeanErr, &run.P50Err, &run.P99Err, &run.MaxErr, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check run: %w", err)
	}

	run.CreatedAt = time.Unix(createdAt, 0)
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*CheckRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, oracle, cases, failures, mean_err, p50_err, p99_err, max_err, created_at
		 FROM check_runs ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list check runs: %w", err)
	}
	defer rows.Close()

	var runs []*CheckRun
	for rows.Next() {
		var run CheckRun
		var createdAt int64
		if err := rows.Scan(&run.ID, &run.Method, &run.Oracle, &run.Cases, &run.Failures, &run.MeanErr, &run.P50Err, &run.P99Err, &run.MaxErr, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan check run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

func (s *SQLiteStore) GetResults(ctx context.Context, runID string) ([]*CheckResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, case_id, a, x, p, q, want_p, want_q, rel_err, branch
		 FROM check_results WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get check results: %w", err)
	}
	defer rows.Close()

	var results []*CheckResult
	for rows.Next() {
		var r CheckResult
		if err := rows.Scan(&r.RunID, &r.CaseID, &r.A, &r.X, &r.P, &r.Q, &r.WantP, &r.WantQ, &r.RelErr, &r.Branch); err != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", err)
		}
		results = append(results, &r)
	}

	return results, rows.Err()
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func validateCase(c *ReferenceCase) error {
	if c == nil {
		return fmt.Errorf("%w: reference case is nil", ErrInvalidCase)
	}
	for _, v := range []float64{c.A, c.X, c.P, c.Q} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: a=%g x=%g: values must be finite", ErrInvalidCase, c.A, c.X)
		}
	}
	if c.A <= 0 || c.X < 0 {
		return fmt.Errorf("%w: a=%g x=%g: need a > 0 and x >= 0", ErrInvalidCase, c.A, c.X)
	}
	if c.P < 0 || c.P > 1 || c.Q < 0 || c.Q > 1 {
		return fmt.Errorf("%w: a=%g x=%g: probabilities must lie in [0, 1]", ErrInvalidCase, c.A, c.X)
	}
	return nil
}
