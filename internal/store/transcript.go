// Package store persists execution traces to SQLite for offline
// inspection. The transcript is an audit log, not dialogue state: a
// write failure is logged and swallowed so a turn never fails on it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"plando/internal/dialogue"
	"plando/internal/logging"
)

// TranscriptStore records one row per turn. Thread-safe; the single
// *sql.DB connection pool serializes writes.
type TranscriptStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open opens (or creates) the transcript database at path.
func Open(path string) (*TranscriptStore, error) {
	logging.StoreDebug("Opening transcript store at %s", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure transcript db: %w", err)
	}

	ts := &TranscriptStore{db: db, dbPath: path}
	if err := ts.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure transcript schema: %w", err)
	}

	logging.Store("Transcript store ready at %s", path)
	return ts, nil
}

func (ts *TranscriptStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcript (
		turn_id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		confidence REAL,
		provenance TEXT,
		reply_mode TEXT NOT NULL,
		steps TEXT,
		total_ms INTEGER,
		started_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transcript_sender ON transcript(sender_id);
	CREATE INDEX IF NOT EXISTS idx_transcript_session ON transcript(session_id);
	CREATE INDEX IF NOT EXISTS idx_transcript_intent ON transcript(intent);
	CREATE INDEX IF NOT EXISTS idx_transcript_started ON transcript(started_at);
	`
	_, err := ts.db.Exec(schema)
	return err
}

// Record implements dialogue.Recorder.
func (ts *TranscriptStore) Record(ctx context.Context, trace *dialogue.Trace) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	steps, err := json.Marshal(trace.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode trace steps: %w", err)
	}

	_, err = ts.db.ExecContext(ctx, `
		INSERT INTO transcript
			(turn_id, sender_id, session_id, intent, confidence, provenance,
			 reply_mode, steps, total_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.TurnID, trace.SenderID, trace.SessionID, trace.Intent,
		trace.Confidence, trace.Provenance, string(trace.ReplyMode),
		string(steps), trace.Total.Milliseconds(), trace.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record turn %s: %w", trace.TurnID, err)
	}

	logging.StoreDebug("Recorded turn %s (intent=%s mode=%s)", trace.TurnID, trace.Intent, trace.ReplyMode)
	return nil
}

// Row is one persisted transcript entry.
type Row struct {
	TurnID     string
	SenderID   string
	SessionID  string
	Intent     string
	Confidence float64
	Provenance string
	ReplyMode  string
	Steps      []dialogue.Step
	TotalMs    int64
	StartedAt  time.Time
}

// RecentBySender returns the newest rows for a sender, newest first.
func (ts *TranscriptStore) RecentBySender(ctx context.Context, senderID string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()

	rows, err := ts.db.QueryContext(ctx, `
		SELECT turn_id, sender_id, session_id, intent, confidence, provenance,
		       reply_mode, steps, total_ms, started_at
		FROM transcript
		WHERE sender_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, senderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// IntentCounts returns how often each intent was resolved, for quick
// catalog-coverage inspection.
func (ts *TranscriptStore) IntentCounts(ctx context.Context) (map[string]int, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	rows, err := ts.db.QueryContext(ctx,
		`SELECT intent, COUNT(*) FROM transcript GROUP BY intent`)
	if err != nil {
		return nil, fmt.Errorf("failed to count intents: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var intent string
		var n int
		if err := rows.Scan(&intent, &n); err != nil {
			return nil, err
		}
		counts[intent] = n
	}
	return counts, rows.Err()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		var steps string
		if err := rows.Scan(&r.TurnID, &r.SenderID, &r.SessionID, &r.Intent,
			&r.Confidence, &r.Provenance, &r.ReplyMode, &steps, &r.TotalMs,
			&r.StartedAt); err != nil {
			return nil, err
		}
		if steps != "" {
			if err := json.Unmarshal([]byte(steps), &r.Steps); err != nil {
				logging.StoreDebug("Unreadable steps for turn %s: %v", r.TurnID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database.
func (ts *TranscriptStore) Close() error {
	return ts.db.Close()
}
