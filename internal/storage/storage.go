// Package storage provides SQLite-backed persistence for filter evaluations
// and trainer runs.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/rugoracle/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db             *sql.DB
	maxEvaluations int
}

// RunSummary aggregates the evaluations of one filter run.
type RunSummary struct {
	RunID     string
	Evaluated int
	Approved  int
	Notified  int
	Fallback  bool
	StartedAt time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/rugoracle/data.db.
func New(maxEvaluations int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "rugoracle", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxEvaluations: maxEvaluations}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			id           TEXT PRIMARY KEY,
			run_id       TEXT NOT NULL,
			token        TEXT NOT NULL,
			score        INTEGER NOT NULL,
			approved     INTEGER NOT NULL,
			notified     INTEGER NOT NULL DEFAULT 0,
			age_status   TEXT NOT NULL,
			fallback     INTEGER NOT NULL DEFAULT 0,
			evaluated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_run ON evaluations(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_at ON evaluations(evaluated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS training_runs (
			id               TEXT PRIMARY KEY,
			symbol           TEXT NOT NULL,
			candle_interval  TEXT NOT NULL,
			candles          INTEGER NOT NULL,
			row_count        INTEGER NOT NULL,
			accuracy         REAL NOT NULL,
			total_return     REAL NOT NULL,
			benchmark_return REAL NOT NULL,
			trades           INTEGER NOT NULL,
			model_path       TEXT NOT NULL,
			created_at       INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddEvaluation stores one evaluation, assigning an ID when empty.
func (s *Storage) AddEvaluation(e *models.Evaluation) error {
	if e.RunID == "" {
		return fmt.Errorf("evaluation run ID must not be empty")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.EvaluatedAt.IsZero() {
		e.EvaluatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO evaluations
			(id, run_id, token, score, approved, notified, age_status, fallback, evaluated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.RunID, e.Token, e.Score, boolToInt(e.Approved), boolToInt(e.Notified),
		string(e.AgeStatus), boolToInt(e.Fallback), e.EvaluatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

// GetRecentEvaluations returns up to k evaluations, newest first.
func (s *Storage) GetRecentEvaluations(k int) ([]models.Evaluation, error) {
	rows, err := s.db.Query(`SELECT `+evaluationCols+` FROM evaluations
		ORDER BY evaluated_at DESC, rowid DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []models.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, *e)
	}
	return evals, rows.Err()
}

// GetRunEvaluations returns the evaluations of one run in insertion order.
func (s *Storage) GetRunEvaluations(runID string) ([]models.Evaluation, error) {
	rows, err := s.db.Query(`SELECT `+evaluationCols+` FROM evaluations
		WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []models.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, *e)
	}
	return evals, rows.Err()
}

// LatestRunSummary aggregates the most recent filter run. It returns nil when
// no evaluation has been stored yet.
func (s *Storage) LatestRunSummary() (*RunSummary, error) {
	row := s.db.QueryRow(`
		SELECT run_id, COUNT(*), SUM(approved), SUM(notified), MAX(fallback), MIN(evaluated_at)
		FROM evaluations
		WHERE run_id = (SELECT run_id FROM evaluations ORDER BY evaluated_at DESC, rowid DESC LIMIT 1)
		GROUP BY run_id`)

	var sum RunSummary
	var fallback int
	var startedNano int64
	err := row.Scan(&sum.RunID, &sum.Evaluated, &sum.Approved, &sum.Notified, &fallback, &startedNano)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to summarise latest run: %w", err)
	}
	sum.Fallback = fallback != 0
	sum.StartedAt = time.Unix(0, startedNano)
	return &sum, nil
}

// RotateEvaluations keeps at most maxEvaluations newest evaluations.
func (s *Storage) RotateEvaluations() error {
	_, err := s.db.Exec(`
		DELETE FROM evaluations WHERE id NOT IN (
			SELECT id FROM evaluations ORDER BY evaluated_at DESC, rowid DESC LIMIT ?
		)`, s.maxEvaluations)
	if err != nil {
		return fmt.Errorf("failed to rotate evaluations: %w", err)
	}
	return nil
}

// AddTrainingRun stores a trainer run, assigning an ID when empty.
func (s *Storage) AddTrainingRun(r *models.TrainingRun) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO training_runs
			(id, symbol, candle_interval, candles, row_count, accuracy, total_return,
			 benchmark_return, trades, model_path, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Symbol, r.Interval, r.Candles, r.Rows, r.Accuracy, r.TotalReturn,
		r.BenchmarkReturn, r.Trades, r.ModelPath, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert training run: %w", err)
	}
	return nil
}

// LatestTrainingRun returns the newest trainer run, or nil when none exists.
func (s *Storage) LatestTrainingRun() (*models.TrainingRun, error) {
	row := s.db.QueryRow(`
		SELECT id, symbol, candle_interval, candles, row_count, accuracy, total_return,
		       benchmark_return, trades, model_path, created_at
		FROM training_runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)

	var r models.TrainingRun
	var createdNano int64
	err := row.Scan(&r.ID, &r.Symbol, &r.Interval, &r.Candles, &r.Rows, &r.Accuracy,
		&r.TotalReturn, &r.BenchmarkReturn, &r.Trades, &r.ModelPath, &createdNano)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	r.CreatedAt = time.Unix(0, createdNano)
	return &r, nil
}

const evaluationCols = `id, run_id, token, score, approved, notified, age_status, fallback, evaluated_at`

func scanEvaluation(scan func(...any) error) (*models.Evaluation, error) {
	var e models.Evaluation
	var approved, notified, fallback int
	var ageStatus string
	var evaluatedNano int64
	err := scan(&e.ID, &e.RunID, &e.Token, &e.Score, &approved, &notified,
		&ageStatus, &fallback, &evaluatedNano)
	if err != nil {
		return nil, err
	}
	e.Approved = approved != 0
	e.Notified = notified != 0
	e.Fallback = fallback != 0
	e.AgeStatus = models.AgeStatus(ageStatus)
	e.EvaluatedAt = time.Unix(0, evaluatedNano)
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
