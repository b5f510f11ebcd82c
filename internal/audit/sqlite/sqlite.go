// Package sqlite is the audit.Sink backed by modernc.org/sqlite, grounded on
// the teacher's internal/history/sqlite/sqlite.go.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/guillotine-sh/guillotine/internal/audit"
)

type Sink struct {
	db *sql.DB
}

// New opens a SQLite audit sink. dsn accepts "sqlite:///path/to/file.db",
// "sqlite://:memory:", a bare path, or ":memory:".
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty sqlite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS process_audit(
		occurred_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		event TEXT NOT NULL,
		module_id INTEGER NOT NULL,
		node TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT
	);`)
	return err
}

func (s *Sink) Send(ctx context.Context, e audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO process_audit(occurred_at, event, module_id, node, name, status, error)
		VALUES(?, ?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), string(e.Type), e.ModuleID, e.Node, e.Name, e.Status, nullIfEmpty(e.Error))
	return err
}

func (s *Sink) Close() error { return s.db.Close() }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
