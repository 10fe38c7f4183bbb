package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"slidecast/internal/config"
	"slidecast/internal/renderqueue"
)

// Entry is one journaled render outcome.
type Entry struct {
	ID         int64
	BatchID    string
	ItemID     string
	ProjectID  int64
	Title      string
	Status     string
	Progress   float64
	OutputURL  string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	RecordedAt time.Time
}

// Journal persists render outcomes to SQLite. It is write-only telemetry: the
// render queue records into it but never reads queue state back out.
type Journal struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Journal, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	journal := &Journal{db: db, path: dbPath}
	if err := journal.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return journal, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Path returns the database file location.
func (j *Journal) Path() string {
	return j.path
}

// Record appends one terminal queue item to the journal.
func (j *Journal) Record(ctx context.Context, batchID string, item renderqueue.Item) error {
	_, err := j.db.ExecContext(
		ctx,
		`INSERT INTO render_history (
            batch_id, item_id, project_id, title, status,
            progress, output_url, error, started_at, finished_at, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID,
		item.ID.String(),
		item.ProjectID,
		item.Title,
		string(item.Status),
		item.Progress,
		item.OutputURL,
		item.Error,
		formatTime(item.StartedAt),
		formatTime(item.FinishedAt),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert render history: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. A limit of zero or less
// returns everything.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, batch_id, item_id, project_id, title, status,
        progress, output_url, error, started_at, finished_at, recorded_at
        FROM render_history ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query render history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var startedAt, finishedAt, recordedAt string
		if err := rows.Scan(
			&entry.ID, &entry.BatchID, &entry.ItemID, &entry.ProjectID,
			&entry.Title, &entry.Status, &entry.Progress, &entry.OutputURL,
			&entry.Error, &startedAt, &finishedAt, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan render history: %w", err)
		}
		entry.StartedAt = parseTime(startedAt)
		entry.FinishedAt = parseTime(finishedAt)
		entry.RecordedAt = parseTime(recordedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate render history: %w", err)
	}
	return entries, nil
}

// Clear deletes all journaled entries.
func (j *Journal) Clear(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, "DELETE FROM render_history"); err != nil {
		return fmt.Errorf("clear render history: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
