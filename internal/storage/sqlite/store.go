// Package sqlite persists selection logs and presentation history in a local
// SQLite file, for offline runs of the selection command.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"surveypilot/internal/model"
)

// Store implements the log and history stores on SQLite
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at the given path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	logTable := `
	CREATE TABLE IF NOT EXISTS selection_logs (
		run_id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		customer_id TEXT,
		rule_id TEXT,
		strategy TEXT,
		reason_code TEXT,
		succeeded INTEGER NOT NULL,
		error TEXT,
		elapsed_ms REAL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_logs_business ON selection_logs(business_id, created_at);
	`

	historyTable := `
	CREATE TABLE IF NOT EXISTS presentations (
		business_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		last_presented_at INTEGER NOT NULL,
		asked_at_interaction INTEGER NOT NULL,
		PRIMARY KEY (business_id, customer_id, question_id)
	);
	CREATE TABLE IF NOT EXISTS interactions (
		business_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (business_id, customer_id)
	);
	`

	for _, table := range []string{logTable, historyTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a selection log, replacing an earlier entry with the same run ID
func (s *Store) Record(ctx context.Context, entry *model.SelectionLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO selection_logs
			(run_id, business_id, customer_id, rule_id, strategy, reason_code, succeeded, error, elapsed_ms, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.BusinessID, entry.CustomerID, entry.RuleID,
		string(entry.Strategy), string(entry.ReasonCode), entry.Succeeded, entry.Error,
		entry.ElapsedMS, string(payload), entry.CreatedAt.UnixMilli(),
	)
	return err
}

// GetByRunID returns nil when the run is unknown
func (s *Store) GetByRunID(ctx context.Context, runID string) (*model.SelectionLog, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM selection_logs WHERE run_id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry model.SelectionLog
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode log %s: %w", runID, err)
	}
	return &entry, nil
}

// ListByBusiness returns the most recent runs of a business first
func (s *Store) ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.SelectionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM selection_logs
		WHERE business_id = ?
		ORDER BY created_at DESC, run_id
		LIMIT ?`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.SelectionLog
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry model.SelectionLog
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// History returns the presentation record of every question the customer was asked
func (s *Store) History(ctx context.Context, businessID, customerID string) (map[string]model.PresentationRecord, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT total FROM interactions WHERE business_id = ? AND customer_id = ?`,
		businessID, customerID,
	).Scan(&total)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, last_presented_at, asked_at_interaction
		FROM presentations
		WHERE business_id = ? AND customer_id = ?`, businessID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make(map[string]model.PresentationRecord)
	for rows.Next() {
		var (
			id      string
			at      int64
			askedAt int
		)
		if err := rows.Scan(&id, &at, &askedAt); err != nil {
			return nil, err
		}
		since := total - askedAt
		if since < 0 {
			since = 0
		}
		history[id] = model.PresentationRecord{
			QuestionID:        id,
			LastPresentedAt:   time.Unix(at, 0).UTC(),
			InteractionsSince: since,
		}
	}
	return history, rows.Err()
}

// RecordInteraction counts one interaction and stamps every presented question with it.
// An interaction that presented nothing still advances the counter.
func (s *Store) RecordInteraction(ctx context.Context, businessID, customerID string, questionIDs []string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO interactions (business_id, customer_id, total) VALUES (?, ?, 1)
		ON CONFLICT (business_id, customer_id) DO UPDATE SET total = total + 1`,
		businessID, customerID); err != nil {
		return err
	}

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT total FROM interactions WHERE business_id = ? AND customer_id = ?`,
		businessID, customerID,
	).Scan(&total); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO presentations
			(business_id, customer_id, question_id, last_presented_at, asked_at_interaction)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range questionIDs {
		if _, err := stmt.ExecContext(ctx, businessID, customerID, id, at.Unix(), total); err != nil {
			return err
		}
	}
	return tx.Commit()
}
