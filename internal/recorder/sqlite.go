package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id            TEXT NOT NULL,
			timestamp         INTEGER NOT NULL,
			percent_remaining REAL,
			remaining_grams   REAL,
			calculated_grams  REAL,
			daily_consumption REAL,
			days_left         REAL,
			days_unbounded    INTEGER,
			last_refill_ts    INTEGER,
			refill_detected   INTEGER,
			override_applied  INTEGER,
			events_processed  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS feed_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			portions  REAL,
			grams     REAL,
			source    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_ts ON feed_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS refills (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			detected_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refill_ts ON refills(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(snap *RunSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := snap.Report
	var refillTS int64
	if !rep.LastRefill.IsZero() {
		refillTS = rep.LastRefill.Unix()
	}

	_, err := r.db.Exec(`INSERT INTO runs
		(run_id, timestamp, percent_remaining, remaining_grams, calculated_grams,
		 daily_consumption, days_left, days_unbounded,
		 last_refill_ts, refill_detected, override_applied, events_processed)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		snap.RunID, rep.GeneratedAt.Unix(),
		rep.PercentRemaining, rep.RemainingGrams, rep.CalculatedGrams,
		rep.DailyConsumption, rep.DaysLeft, boolInt(rep.DaysUnbounded),
		refillTS, boolInt(rep.RefillDetected), boolInt(rep.OverrideApplied),
		rep.EventsProcessed,
	)
	return err
}

func (r *SQLiteRecorder) RecordFeed(evt *FeedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO feed_events (timestamp, portions, grams, source)
		VALUES (?,?,?,?)`,
		evt.Time.Unix(), evt.Portions, evt.Grams, evt.Source,
	)
	return err
}

func (r *SQLiteRecorder) RecordRefill(evt *RefillEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	detected := evt.DetectedAt
	if detected.IsZero() {
		detected = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO refills (timestamp, detected_at) VALUES (?,?)`,
		evt.Time.Unix(), detected.Unix(),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
