// Package usage provides persistent token usage and cost tracking for
// directive runs. Records are append-only and indexed by timestamp
// and directive for aggregation queries.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/dirigent/internal/config"
)

// Record represents one directive run's token usage and cost.
type Record struct {
	ID           string
	Timestamp    time.Time
	RunID        string
	Directive    string
	Model        string
	InputTokens  int
	OutputTokens int
	Turns        int
	Termination  string // "done", "turn_limit_reached", "failed"
	CostUSD      float64
}

// Summary holds aggregated usage and cost totals.
type Summary struct {
	TotalRecords      int
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalTurns        int64
	TotalCostUSD      float64
}

// Store is an append-only SQLite store for run usage records. All
// public methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore creates a usage store at the given database path. The schema
// is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_records (
		id            TEXT PRIMARY KEY,
		timestamp     TEXT NOT NULL,
		run_id        TEXT NOT NULL,
		directive     TEXT NOT NULL,
		model         TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		turns         INTEGER NOT NULL,
		termination   TEXT NOT NULL,
		cost_usd      REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_timestamp ON run_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_run_directive ON run_records(directive);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists a usage record. If rec.ID is empty, a UUIDv7 is
// generated. The context is used for cancellation only.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate usage record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_records
			(id, timestamp, run_id, directive, model,
			 input_tokens, output_tokens, turns, termination, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.RunID,
		rec.Directive,
		rec.Model,
		rec.InputTokens,
		rec.OutputTokens,
		rec.Turns,
		rec.Termination,
		rec.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// Summary returns aggregated totals for records within [start, end).
func (s *Store) Summary(start, end time.Time) (*Summary, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(turns), 0), COALESCE(SUM(cost_usd), 0)
		 FROM run_records
		 WHERE timestamp >= ? AND timestamp < ?`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)

	var sum Summary
	if err := row.Scan(&sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalTurns, &sum.TotalCostUSD); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}

// SummaryByDirective returns per-directive aggregated totals for
// records within [start, end).
func (s *Store) SummaryByDirective(start, end time.Time) (map[string]*Summary, error) {
	rows, err := s.db.Query(
		`SELECT directive, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(turns), 0), COALESCE(SUM(cost_usd), 0)
		 FROM run_records
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY directive
		 ORDER BY SUM(cost_usd) DESC`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by directive: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var key string
		var sum Summary
		if err := rows.Scan(&key, &sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalTurns, &sum.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("scan usage by directive: %w", err)
		}
		result[key] = &sum
	}
	return result, rows.Err()
}

// ComputeCost calculates the USD cost for a model's token usage based
// on the pricing table. Models not in the table cost nothing.
func ComputeCost(model string, inputTokens, outputTokens int, pricing map[string]config.PricingEntry) float64 {
	entry, ok := pricing[model]
	if !ok {
		return 0
	}
	cost := float64(inputTokens) / 1_000_000.0 * entry.InputPerMTok
	cost += float64(outputTokens) / 1_000_000.0 * entry.OutputPerMTok
	return cost
}
