// Package sqlite persists pipeline runs so results can be compared across
// parameter choices.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"basket-insights/internal/models"
)

//go:embed schema.sql
var schemaSQL string

var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite-backed archive of runs.
type Store struct {
	db *sql.DB
}

// RunInfo is one row of the runs table.
type RunInfo struct {
	ID          string
	Source      string
	Params      models.RunParams
	CleanRows   int
	Invoices    int
	GeneratedAt time.Time
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes res with all its itemsets and rules in one transaction and
// returns the new run id.
func (s *Store) SaveRun(ctx context.Context, res models.RunResult) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	generated := res.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, min_support, metric, min_threshold, max_len,
			original_rows, clean_rows, invoices, items, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Source, res.Params.MinSupport, res.Params.Metric, res.Params.MinThreshold, res.Params.MaxLen,
		res.Summary.OriginalRows, res.Summary.CleanRows, res.Invoices, res.Items, generated.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := insertItemsets(ctx, tx, runID, res.Itemsets); err != nil {
		return "", err
	}
	if err := insertRules(ctx, tx, runID, res.Rules); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

func insertItemsets(ctx context.Context, tx *sql.Tx, runID string, itemsets []models.Itemset) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO itemsets (run_id, position, items, length, count, support)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare itemsets: %w", err)
	}
	defer stmt.Close()

	for i, is := range itemsets {
		items, err := json.Marshal(is.Items)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, i, string(items), len(is.Items), is.Count, is.Support); err != nil {
			return fmt.Errorf("insert itemset %d: %w", i, err)
		}
	}
	return nil
}

func insertRules(ctx context.Context, tx *sql.Tx, runID string, rules []models.Rule) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rules (run_id, position, antecedents, consequents,
			antecedent_support, consequent_support, support, confidence, lift,
			leverage, conviction, zhangs_metric, jaccard, certainty, kulczynski)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare rules: %w", err)
	}
	defer stmt.Close()

	for i, r := range rules {
		ante, err := json.Marshal(r.Antecedents)
		if err != nil {
			return err
		}
		cons, err := json.Marshal(r.Consequents)
		if err != nil {
			return err
		}

		// infinite conviction is stored as NULL
		var conviction sql.NullFloat64
		if c := float64(r.Conviction); !math.IsInf(c, 0) && !math.IsNaN(c) {
			conviction = sql.NullFloat64{Float64: c, Valid: true}
		}

		_, err = stmt.ExecContext(ctx, runID, i, string(ante), string(cons),
			r.AntecedentSupport, r.ConsequentSupport, r.Support, r.Confidence, r.Lift,
			r.Leverage, conviction, r.ZhangsMetric, r.Jaccard, r.Certainty, r.Kulczynski)
		if err != nil {
			return fmt.Errorf("insert rule %d: %w", i, err)
		}
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, min_support, metric, min_threshold, max_len, clean_rows, invoices, generated_at
		FROM runs ORDER BY generated_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.Source, &r.Params.MinSupport, &r.Params.Metric,
			&r.Params.MinThreshold, &r.Params.MaxLen, &r.CleanRows, &r.Invoices, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Rules returns the stored rules of a run in their saved order.
func (s *Store) Rules(ctx context.Context, runID string) ([]models.Rule, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT antecedents, consequents, antecedent_support, consequent_support,
			support, confidence, lift, leverage, conviction, zhangs_metric,
			jaccard, certainty, kulczynski
		FROM rules WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []models.Rule{}
	for rows.Next() {
		var (
			r          models.Rule
			ante, cons string
			conviction sql.NullFloat64
		)
		if err := rows.Scan(&ante, &cons, &r.AntecedentSupport, &r.ConsequentSupport,
			&r.Support, &r.Confidence, &r.Lift, &r.Leverage, &conviction, &r.ZhangsMetric,
			&r.Jaccard, &r.Certainty, &r.Kulczynski); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if err := json.Unmarshal([]byte(ante), &r.Antecedents); err != nil {
			return nil, fmt.Errorf("decode antecedents: %w", err)
		}
		if err := json.Unmarshal([]byte(cons), &r.Consequents); err != nil {
			return nil, fmt.Errorf("decode consequents: %w", err)
		}
		r.Conviction = models.Measure(math.Inf(1))
		if conviction.Valid {
			r.Conviction = models.Measure(conviction.Float64)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
