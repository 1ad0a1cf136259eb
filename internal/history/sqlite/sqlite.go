package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/pnrwatch/internal/history"
)

// Sink writes history events to SQLite database.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pnr_history(
			timestamp TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
			event_id TEXT NOT NULL,
			pnr TEXT NOT NULL,
			event TEXT NOT NULL,
			previous_status TEXT,
			current_status TEXT NOT NULL,
			prediction TEXT,
			prediction_percentage TEXT,
			record TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pnr_history_pnr ON pnr_history(pnr);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	rec, err := json.Marshal(e.Record)
	if err != nil {
		return err
	}
	pred, pct := e.Prediction()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pnr_history(timestamp, event_id, pnr, event, previous_status, current_status, prediction, prediction_percentage, record)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), e.ID, e.Reference, string(e.Type), nullable(e.PreviousStatus), e.CurrentStatus(), pred, pct, string(rec))
	return err
}

// Count returns the number of stored events for ref.
func (s *Sink) Count(ctx context.Context, ref string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pnr_history WHERE pnr = ?;`, ref).Scan(&n)
	return n, err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
