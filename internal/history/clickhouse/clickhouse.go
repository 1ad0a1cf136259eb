package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/pnrwatch/internal/history"
)

// Sink sends events to ClickHouse using the official ClickHouse Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to the native ClickHouse endpoint at addr and creates table
// if it does not exist.
func New(addr, table string) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &Sink{conn: conn, table: table}
	if err := s.ensureSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	err := s.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id String,
			type String,
			occurred_at DateTime64(6),
			pnr String,
			previous_status Nullable(String),
			current_status String,
			prediction String,
			prediction_percentage String,
			record String
		) ENGINE = MergeTree()
		ORDER BY (pnr, occurred_at)`, s.table))
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse table %s: %w", s.table, err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	rec, err := json.Marshal(e.Record)
	if err != nil {
		return err
	}
	var prev *string
	if e.PreviousStatus != "" {
		prev = &e.PreviousStatus
	}
	pred, pct := e.Prediction()

	query := fmt.Sprintf(`INSERT INTO %s (id, type, occurred_at, pnr, previous_status, current_status, prediction, prediction_percentage, record) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	err = s.conn.Exec(ctx, query,
		e.ID,
		string(e.Type),
		e.OccurredAt,
		e.Reference,
		prev,
		e.CurrentStatus(),
		pred,
		pct,
		string(rec),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}

	return nil
}

// Count returns the number of stored events for ref.
func (s *Sink) Count(ctx context.Context, ref string) (uint64, error) {
	var n uint64
	err := s.conn.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE pnr = ?", s.table), ref).Scan(&n)
	return n, err
}
