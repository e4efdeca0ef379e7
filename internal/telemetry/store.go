// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// STATS STORE
// =============================================================================

// Store persists stream summaries in a local SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS stream_stats (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at       INTEGER NOT NULL,
	ttf_ms           INTEGER NOT NULL,
	text_chunks      INTEGER NOT NULL,
	thinking_chunks  INTEGER NOT NULL,
	tool_events      INTEGER NOT NULL,
	malformed_frames INTEGER NOT NULL,
	terminal         TEXT NOT NULL,
	provider         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stream_stats_started ON stream_stats(started_at);
`

// DefaultDBPath returns ~/.courier/telemetry.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".courier", "telemetry.db"), nil
}

// OpenStore opens (creating if needed) the stats database at path. An
// empty path selects DefaultDBPath.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("telemetry pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save persists one session summary.
func (s *Store) Save(sum Summary) error {
	_, err := s.db.Exec(`
		INSERT INTO stream_stats
			(started_at, ttf_ms, text_chunks, thinking_chunks, tool_events, malformed_frames, terminal, provider)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.StartedAt.Unix(),
		sum.TimeToFirst.Milliseconds(),
		sum.TextChunks,
		sum.ThinkingChunks,
		sum.ToolEvents,
		sum.MalformedFrames,
		sum.Terminal,
		sum.Provider,
	)
	if err != nil {
		return fmt.Errorf("save stream stats: %w", err)
	}
	return nil
}

// Recent returns up to n most recent summaries, newest first.
func (s *Store) Recent(n int) ([]Summary, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.Query(`
		SELECT started_at, ttf_ms, text_chunks, thinking_chunks, tool_events, malformed_frames, terminal, provider
		FROM stream_stats ORDER BY started_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query stream stats: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var started, ttfMs int64
		if err := rows.Scan(&started, &ttfMs, &sum.TextChunks, &sum.ThinkingChunks,
			&sum.ToolEvents, &sum.MalformedFrames, &sum.Terminal, &sum.Provider); err != nil {
			return nil, fmt.Errorf("scan stream stats: %w", err)
		}
		sum.StartedAt = time.Unix(started, 0)
		sum.TimeToFirst = time.Duration(ttfMs) * time.Millisecond
		out = append(out, sum)
	}
	return out, rows.Err()
}

// MalformedFrameTotal returns the all-time count of skipped frames, a
// quick health signal for the upstream producer.
func (s *Store) MalformedFrameTotal() (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(malformed_frames) FROM stream_stats`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum malformed frames: %w", err)
	}
	return total.Int64, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
