// Package clickhouse is the audit.Sink backed by the official
// ClickHouse/clickhouse-go/v2 client, grounded on the teacher's
// internal/history/clickhouse/clickhouse.go.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/guillotine-sh/guillotine/internal/audit"
)

type Sink struct {
	conn  driver.Conn
	table string
}

// New opens a ClickHouse native-protocol connection. addr is "host:port".
func New(addr, table string) (*Sink, error) {
	if table == "" {
		table = "process_audit"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{Database: "default", Username: "default", Password: ""},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: connect: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse: ping: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

func (s *Sink) Send(ctx context.Context, e audit.Event) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (event, occurred_at, module_id, node, name, status, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.table,
	)
	if err := s.conn.Exec(ctx, query, string(e.Type), e.OccurredAt, e.ModuleID, e.Node, e.Name, e.Status, e.Error); err != nil {
		return fmt.Errorf("clickhouse: insert: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
