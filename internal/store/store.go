package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gordyrad/green-refactor/internal/ledger"
)

// Analysis is one validated audit kept in the history.
type Analysis struct {
	ID               string
	URI              string
	Language         string
	Range            string
	Provider         string
	Model            string
	TokensUsed       int
	ScoreOriginal    int
	ScoreOptimized   int
	ComplexityBefore string
	ComplexityAfter  string
	Summary          string
	EstimatedGain    string
	Result           string
	CreatedAt        time.Time
}

// Edit records one optimized fragment written back to a file.
type Edit struct {
	ID         int64
	AnalysisID string
	URI        string
	Range      string
	BeforeHash string
	AfterHash  string
	CreatedAt  time.Time
}

// Report represents an exported report file.
type Report struct {
	ID          int64
	AnalysisID  string
	Format      string
	FilePath    string
	ContentHash string
	CreatedAt   time.Time
}

// Store provides database operations for the application.
type Store struct {
	db *sql.DB
}

var _ ledger.KV = (*Store)(nil)

// New creates a new Store and runs migrations. The parent directory of a
// file database is created when missing.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for each key; absent keys read as 0.
func (s *Store) Get(ctx context.Context, keys ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		out[k] = 0
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM kv_state WHERE key IN (?"+repeatParam(len(keys)-1)+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Add increments every key by its delta inside one transaction.
func (s *Store) Add(ctx context.Context, deltas map[string]int64) error {
	keys := make([]string, 0, len(deltas))
	for k, d := range deltas {
		if d < 0 {
			return fmt.Errorf("%w for %s", ledger.ErrNegativeDelta, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kv_state (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET
				value=kv_state.value + excluded.value,
				updated_at=CURRENT_TIMESTAMP
		`, k, deltas[k]); err != nil {
			return fmt.Errorf("updating %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// InsertAnalysis stores an audit in the history. An empty ID is replaced by
// a new UUID, which is returned.
func (s *Store) InsertAnalysis(ctx context.Context, a *Analysis) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, uri, language, range_text, provider, model, tokens_used,
			score_original, score_optimized, complexity_before, complexity_after, summary,
			estimated_gain, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, a.ID, a.URI, a.Language, a.Range, a.Provider, a.Model, a.TokensUsed,
		a.ScoreOriginal, a.ScoreOptimized, a.ComplexityBefore, a.ComplexityAfter, a.Summary,
		a.EstimatedGain, a.Result)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// GetAnalysis retrieves a single analysis by ID.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	a := &Analysis{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, uri, language, range_text, provider, model, tokens_used, score_original,
			score_optimized, complexity_before, complexity_after, summary, estimated_gain, result, created_at
		FROM analyses WHERE id = ?`, id).Scan(
		&a.ID, &a.URI, &a.Language, &a.Range, &a.Provider, &a.Model, &a.TokensUsed,
		&a.ScoreOriginal, &a.ScoreOptimized, &a.ComplexityBefore, &a.ComplexityAfter,
		&a.Summary, &a.EstimatedGain, &a.Result, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAnalyses returns the most recent analyses, newest first, optionally
// restricted to one document URI. A limit <= 0 returns everything.
func (s *Store) ListAnalyses(ctx context.Context, uri string, limit int) ([]*Analysis, error) {
	query := `SELECT id, uri, language, range_text, provider, model, tokens_used, score_original,
			score_optimized, complexity_before, complexity_after, summary, estimated_gain, result, created_at
		FROM analyses`
	var args []interface{}
	if uri != "" {
		query += " WHERE uri = ?"
		args = append(args, uri)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		a := &Analysis{}
		if err := rows.Scan(&a.ID, &a.URI, &a.Language, &a.Range, &a.Provider, &a.Model, &a.TokensUsed,
			&a.ScoreOriginal, &a.ScoreOptimized, &a.ComplexityBefore, &a.ComplexityAfter,
			&a.Summary, &a.EstimatedGain, &a.Result, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LogEdit inserts an edit log entry.
func (s *Store) LogEdit(ctx context.Context, e *Edit) error {
	var analysisID interface{}
	if e.AnalysisID != "" {
		analysisID = e.AnalysisID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edit_log (analysis_id, uri, range_text, before_hash, after_hash, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, analysisID, e.URI, e.Range, e.BeforeHash, e.AfterHash)
	return err
}

// ListEdits returns the edit log for a URI, newest first. An empty URI lists
// every edit.
func (s *Store) ListEdits(ctx context.Context, uri string) ([]*Edit, error) {
	query := "SELECT id, COALESCE(analysis_id, ''), uri, range_text, before_hash, after_hash, created_at FROM edit_log"
	var args []interface{}
	if uri != "" {
		query += " WHERE uri = ?"
		args = append(args, uri)
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edits []*Edit
	for rows.Next() {
		e := &Edit{}
		if err := rows.Scan(&e.ID, &e.AnalysisID, &e.URI, &e.Range, &e.BeforeHash, &e.AfterHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, rows.Err()
}

// InsertReport inserts a report record.
func (s *Store) InsertReport(ctx context.Context, r *Report) error {
	var analysisID interface{}
	if r.AnalysisID != "" {
		analysisID = r.AnalysisID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (analysis_id, format, file_path, content_hash, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, analysisID, r.Format, r.FilePath, r.ContentHash)
	return err
}

func repeatParam(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ",?"
	}
	return s
}
