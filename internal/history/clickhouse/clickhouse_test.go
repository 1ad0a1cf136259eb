package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/pnrwatch/internal/history"
	"github.com/loykin/pnrwatch/internal/pnr"
)

// setupClickHouseContainer starts a ClickHouse container for testing
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return clickHouseContainer, host + ":" + port.Port()
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	clickHouseContainer, addr := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := clickHouseContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink, err := New(addr, "pnr_history")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	first := pnr.Record{Train: "12951 RAJDHANI", PassengerStatus: []pnr.Passenger{{CurrentStatus: "WL 4"}}}
	second := pnr.Record{Train: "12951 RAJDHANI", PassengerStatus: []pnr.Passenger{{CurrentStatus: "CNF"}}}

	if err := sink.Send(ctx, history.NewEvent("8439632790", nil, first, false, time.Now())); err != nil {
		t.Fatalf("Failed to send observed event: %v", err)
	}
	if err := sink.Send(ctx, history.NewEvent("8439632790", &first, second, true, time.Now())); err != nil {
		t.Fatalf("Failed to send change event: %v", err)
	}

	count, err := sink.Count(ctx, "8439632790")
	if err != nil {
		t.Fatalf("Failed to query count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 events, got %d", count)
	}
}

func TestClickHouseSink_ConnectionError(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping network test in short mode")
	}
	if _, err := New("invalid-host:9000", "pnr_history"); err == nil {
		t.Error("Expected error with invalid connection, got nil")
	}
}
