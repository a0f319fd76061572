package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Firing outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeSuppressed = "suppressed"
)

// Run is one daemon lifetime.
type Run struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	ExitReason string
}

// Firing is one rule action invocation.
type Firing struct {
	RunID     string
	Rule      string
	Action    string
	Target    string
	Path      string
	EventKind string
	Outcome   string
	Detail    string
	FiredAt   time.Time
}

// Resync is one fidelity-loss re-scan.
type Resync struct {
	RunID      string
	Target     string
	Reason     string
	Entries    int
	OccurredAt time.Time
}

// Recorder is the write surface the dispatcher needs. Store implements it;
// NopRecorder satisfies it when history is disabled.
type Recorder interface {
	RecordFiring(ctx context.Context, firing Firing) error
	RecordResync(ctx context.Context, resync Resync) error
}

// NopRecorder discards all records.
type NopRecorder struct{}

func (NopRecorder) RecordFiring(context.Context, Firing) error { return nil }
func (NopRecorder) RecordResync(context.Context, Resync) error { return nil }

// Store persists run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database in stateDir and
// applies migrations.
func Open(stateDir string) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, "housekeeper.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// StartRun records the beginning of a daemon lifetime.
func (s *Store) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`,
		runID, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun closes out a run with its exit reason.
func (s *Store) FinishRun(ctx context.Context, runID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, exit_reason = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), reason, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordFiring persists one rule invocation.
func (s *Store) RecordFiring(ctx context.Context, firing Firing) error {
	firedAt := firing.FiredAt
	if firedAt.IsZero() {
		firedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO firings (run_id, rule, action, target, path, event_kind, outcome, detail, fired_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		firing.RunID, firing.Rule, firing.Action, firing.Target, firing.Path,
		firing.EventKind, firing.Outcome, nullableString(firing.Detail),
		firedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert firing: %w", err)
	}
	return nil
}

// RecordResync persists one fidelity-loss re-scan.
func (s *Store) RecordResync(ctx context.Context, resync Resync) error {
	occurredAt := resync.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resyncs (run_id, target, reason, entries, occurred_at)
         VALUES (?, ?, ?, ?, ?)`,
		resync.RunID, resync.Target, resync.Reason, resync.Entries,
		occurredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert resync: %w", err)
	}
	return nil
}

// RecentFirings returns the newest firings, most recent first.
func (s *Store) RecentFirings(ctx context.Context, limit int) ([]Firing, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, rule, action, target, path, event_kind, outcome, COALESCE(detail, ''), fired_at
         FROM firings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	var firings []Firing
	for rows.Next() {
		var f Firing
		var firedAt string
		if err := rows.Scan(&f.RunID, &f.Rule, &f.Action, &f.Target, &f.Path,
			&f.EventKind, &f.Outcome, &f.Detail, &firedAt); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		f.FiredAt = parseTimestamp(firedAt)
		firings = append(firings, f)
	}
	return firings, rows.Err()
}

// RecentResyncs returns the newest resync records, most recent first.
func (s *Store) RecentResyncs(ctx context.Context, limit int) ([]Resync, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, target, reason, entries, occurred_at
         FROM resyncs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query resyncs: %w", err)
	}
	defer rows.Close()

	var resyncs []Resync
	for rows.Next() {
		var r Resync
		var occurredAt string
		if err := rows.Scan(&r.RunID, &r.Target, &r.Reason, &r.Entries, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan resync: %w", err)
		}
		r.OccurredAt = parseTimestamp(occurredAt)
		resyncs = append(resyncs, r)
	}
	return resyncs, rows.Err()
}

// RuleStat aggregates firing outcomes for one rule.
type RuleStat struct {
	Rule       string
	Fired      int64
	Suppressed int64
	Errors     int64
	LastFired  time.Time
}

// Stats returns per-rule firing totals across all runs, ordered by rule name.
func (s *Store) Stats(ctx context.Context) ([]RuleStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule,
                SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
                SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
                SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
                COALESCE(MAX(fired_at), '')
         FROM firings GROUP BY rule ORDER BY rule`,
		OutcomeOK, OutcomeSuppressed, OutcomeError)
	if err != nil {
		return nil, fmt.Errorf("query rule stats: %w", err)
	}
	defer rows.Close()

	var stats []RuleStat
	for rows.Next() {
		var st RuleStat
		var lastFired string
		if err := rows.Scan(&st.Rule, &st.Fired, &st.Suppressed, &st.Errors, &lastFired); err != nil {
			return nil, fmt.Errorf("scan rule stats: %w", err)
		}
		if lastFired != "" {
			st.LastFired = parseTimestamp(lastFired)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// LastRun returns the most recently started run, or nil when none exists.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, COALESCE(finished_at, ''), COALESCE(exit_reason, '')
         FROM runs ORDER BY id DESC LIMIT 1`)

	var run Run
	var startedAt, finishedAt string
	if err := row.Scan(&run.RunID, &startedAt, &finishedAt, &run.ExitReason); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt != "" {
		run.FinishedAt = parseTimestamp(finishedAt)
	}
	return &run, nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
