// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// Record is one turn's token accounting.
type Record struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	Cost         float64   `json:"cost"`
	SessionID    string    `json:"sessionId,omitempty"`
	ProjectPath  string    `json:"projectPath,omitempty"`
}

// Totals aggregates a set of records.
type Totals struct {
	TotalTokens  int     `json:"totalTokens"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
	RequestCount int     `json:"requestCount"`
}

// DailyStats is one day's aggregation, keyed by YYYY-MM-DD.
type DailyStats struct {
	Date string `json:"date"`
	Totals
}

// ModelStats is one model's aggregation.
type ModelStats struct {
	Model  string  `json:"model"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
	Count  int     `json:"count"`
}

// =============================================================================
// USAGE STORE
// =============================================================================

// MaxRecords bounds the stored window; older records are pruned.
const MaxRecords = 1000

const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id            TEXT PRIMARY KEY,
	timestamp     INTEGER NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost          REAL NOT NULL,
	session_id    TEXT,
	project_path  TEXT
);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_model ON usage_records(model);
`

// Store persists usage records in SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a store under the user's home directory
// (~/.codepod/usage.db).
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(filepath.Join(homeDir, ".codepod", "usage.db"))
}

// NewStoreWithPath opens a store at a custom database path.
func NewStoreWithPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// RECORDING
// =============================================================================

// Add appends a record, computing its cost from the pricing table, and
// prunes the window to MaxRecords.
func (s *Store) Add(model string, inputTokens, outputTokens int, sessionID, projectPath string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{
		ID:           uuid.NewString(),
		Timestamp:    time.Now(),
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         Cost(model, inputTokens, outputTokens),
		SessionID:    sessionID,
		ProjectPath:  projectPath,
	}

	_, err := s.db.Exec(
		`INSERT INTO usage_records (id, timestamp, model, input_tokens, output_tokens, cost, session_id, project_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixMilli(), rec.Model, rec.InputTokens, rec.OutputTokens, rec.Cost, rec.SessionID, rec.ProjectPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	// Keep only the most recent window.
	_, err = s.db.Exec(
		`DELETE FROM usage_records WHERE id NOT IN (
			SELECT id FROM usage_records ORDER BY timestamp DESC, id LIMIT ?
		)`, MaxRecords,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to prune records: %w", err)
	}

	return rec, nil
}

// RecordUsage implements the orchestrator's usage collaborator. Failures
// are logged, never surfaced: accounting must not block the conversation.
func (s *Store) RecordUsage(model string, inputTokens, outputTokens int, sessionID string) {
	if _, err := s.Add(model, inputTokens, outputTokens, sessionID, ""); err != nil {
		log.Printf("usage record failed: %v", err)
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// Records returns all stored records, most recent first.
func (s *Store) Records() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, timestamp, model, input_tokens, output_tokens, cost, session_id, project_path
		 FROM usage_records ORDER BY timestamp DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var ts int64
		var sessionID, projectPath sql.NullString
		if err := rows.Scan(&rec.ID, &ts, &rec.Model, &rec.InputTokens, &rec.OutputTokens, &rec.Cost, &sessionID, &projectPath); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(ts)
		rec.SessionID = sessionID.String
		rec.ProjectPath = projectPath.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Total aggregates all stored records.
func (s *Store) Total() (Totals, error) {
	row := s.db.QueryRow(
		`SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(cost), 0), COUNT(*)
		 FROM usage_records`,
	)
	return scanTotals(row)
}

// LastNDays aggregates records from the trailing n days.
func (s *Store) LastNDays(n int) (Totals, error) {
	cutoff := time.Now().AddDate(0, 0, -n).UnixMilli()
	row := s.db.QueryRow(
		`SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(cost), 0), COUNT(*)
		 FROM usage_records WHERE timestamp >= ?`, cutoff,
	)
	return scanTotals(row)
}

func scanTotals(row *sql.Row) (Totals, error) {
	var t Totals
	if err := row.Scan(&t.InputTokens, &t.OutputTokens, &t.Cost, &t.RequestCount); err != nil {
		return Totals{}, err
	}
	t.TotalTokens = t.InputTokens + t.OutputTokens
	return t, nil
}

// Daily aggregates records per day, most recent day first.
func (s *Store) Daily() ([]DailyStats, error) {
	rows, err := s.db.Query(
		`SELECT date(timestamp / 1000, 'unixepoch') AS day,
		        SUM(input_tokens), SUM(output_tokens), SUM(cost), COUNT(*)
		 FROM usage_records GROUP BY day ORDER BY day DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var d DailyStats
		if err := rows.Scan(&d.Date, &d.InputTokens, &d.OutputTokens, &d.Cost, &d.RequestCount); err != nil {
			return nil, err
		}
		d.TotalTokens = d.InputTokens + d.OutputTokens
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

// ByModel aggregates records per model, most expensive first.
func (s *Store) ByModel() ([]ModelStats, error) {
	rows, err := s.db.Query(
		`SELECT model, SUM(input_tokens + output_tokens), SUM(cost), COUNT(*)
		 FROM usage_records GROUP BY model ORDER BY SUM(cost) DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ModelStats
	for rows.Next() {
		var m ModelStats
		if err := rows.Scan(&m.Model, &m.Tokens, &m.Cost, &m.Count); err != nil {
			return nil, err
		}
		stats = append(stats, m)
	}
	return stats, rows.Err()
}

// =============================================================================
// MAINTENANCE / EXPORT
// =============================================================================

// Clear removes all records.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM usage_records`)
	return err
}

// ExportJSON renders all records as pretty-printed JSON.
func (s *Store) ExportJSON() ([]byte, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}
