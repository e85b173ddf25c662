// Package journal keeps a local history of message processing outcomes
// in a SQLite database. The pipeline only ever writes to it; reads are
// for the status endpoint and operators. It carries no processing state:
// whether a message gets retried is decided by the mailbox alone.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Outcome classifies how processing of one message ended.
type Outcome string

const (
	// OutcomeDelivered means the webhook accepted the notification and
	// the message was deleted.
	OutcomeDelivered Outcome = "delivered"

	// OutcomeIgnored means the message matched an ignore rule and was
	// deleted without notification.
	OutcomeIgnored Outcome = "ignored"

	// OutcomeFailed means delivery failed and the message stays in the
	// mailbox for the next cycle.
	OutcomeFailed Outcome = "failed"
)

// Entry is one terminal outcome for one message. Only headers and the
// outcome are stored, never message bodies.
type Entry struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
}

// Journal is a handle to the outcome database.
type Journal struct {
	db *sqlx.DB
}

// Open opens (or creates) the journal database at dbPath, enables WAL
// mode, and applies any pending schema migrations.
func Open(dbPath string) (*Journal, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	j := &Journal{db: db}
	if err := j.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := j.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = j.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := j.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Record inserts one outcome. A missing ID gets a fresh UUID and a zero
// RecordedAt becomes the current time.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO outcomes (id, recorded_at, sender, subject, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.RecordedAt.UTC(), e.Sender, e.Subject, string(e.Outcome), e.Detail,
	)
	if err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// falls back to 50.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryxContext(ctx, `
		SELECT id, recorded_at, sender, subject, outcome, detail
		FROM outcomes ORDER BY recorded_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntry(rows *sqlx.Rows) (Entry, error) {
	var (
		e          Entry
		recordedAt time.Time
		outcome    string
	)

	err := rows.Scan(&e.ID, &recordedAt, &e.Sender, &e.Subject, &outcome, &e.Detail)
	if err != nil {
		return Entry{}, fmt.Errorf("scanning outcome row: %w", err)
	}

	e.RecordedAt = recordedAt
	e.Outcome = Outcome(outcome)

	return e, nil
}
