// Package sqlite persists the gateway's audit trail.
//
// The store is append-only: every feedback event and every selection round is
// recorded as a row. It is NOT a persistence layer for the performance
// trackers (those always start empty and re-learn from live feedback); the
// audit trail exists so operators can replay and inspect dispatch decisions.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the audit database at path and applies
// migrations. Use ":memory:" for an ephemeral store.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// ─── Schema ─────────────────────────────────────────────────────────────────

// migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func migrations() []string {
	return []string{
		// One row per feedback event
		`CREATE TABLE IF NOT EXISTS feedback_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			provider    TEXT NOT NULL,
			success     INTEGER NOT NULL,
			latency_ms  INTEGER NOT NULL,
			recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_provider ON feedback_events(provider)`,

		// One row per selection round
		`CREATE TABLE IF NOT EXISTS selection_rounds (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			round_id    TEXT NOT NULL UNIQUE,
			candidates  INTEGER NOT NULL,
			selected    INTEGER NOT NULL,
			providers   TEXT NOT NULL,
			duration_us INTEGER NOT NULL DEFAULT 0,
			decided_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range migrations() {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Feedback Events ────────────────────────────────────────────────────────

// RecordFeedback appends one feedback event.
func (db *DB) RecordFeedback(provider string, success bool, latencyMS uint16) error {
	_, err := db.conn.Exec(
		`INSERT INTO feedback_events (provider, success, latency_ms) VALUES (?, ?, ?)`,
		provider, boolToInt(success), int64(latencyMS),
	)
	if err != nil {
		return fmt.Errorf("record feedback for %s: %w", provider, err)
	}
	return nil
}

// FeedbackCount returns how many feedback events are recorded for provider.
func (db *DB) FeedbackCount(provider string) (int64, error) {
	var n int64
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM feedback_events WHERE provider = ?`, provider,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count feedback for %s: %w", provider, err)
	}
	return n, nil
}

// ─── Selection Rounds ───────────────────────────────────────────────────────

// RecordSelection appends one selection round. providers is the selected
// provider list, comma-joined by the caller.
func (db *DB) RecordSelection(roundID string, candidates, selected int, providers string, duration time.Duration) error {
	_, err := db.conn.Exec(
		`INSERT INTO selection_rounds (round_id, candidates, selected, providers, duration_us)
		 VALUES (?, ?, ?, ?, ?)`,
		roundID, candidates, selected, providers, duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("record selection %s: %w", roundID, err)
	}
	return nil
}

// SelectionRound is one recorded dispatch decision.
type SelectionRound struct {
	RoundID    string
	Candidates int
	Selected   int
	Providers  string
	DecidedAt  string
}

// RecentSelections returns up to limit rounds, newest first.
func (db *DB) RecentSelections(limit int) ([]SelectionRound, error) {
	rows, err := db.conn.Query(
		`SELECT round_id, candidates, selected, providers, decided_at
		 FROM selection_rounds ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query selections: %w", err)
	}
	defer rows.Close()

	var out []SelectionRound
	for rows.Next() {
		var r SelectionRound
		if err := rows.Scan(&r.RoundID, &r.Candidates, &r.Selected, &r.Providers, &r.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
