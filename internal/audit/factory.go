package audit

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/guillotine-sh/guillotine/internal/audit/clickhouse"
	"github.com/guillotine-sh/guillotine/internal/audit/postgres"
	"github.com/guillotine-sh/guillotine/internal/audit/sqlite"
)

// NewSink builds a Sink from a driver name and DSN (config.AuditConfig),
// grounded on the teacher's internal/history/factory.NewSinkFromDSN. An
// empty driver returns a NopSink: audit persistence is optional
// (SPEC_FULL.md §6.4).
func NewSink(driver, dsn string) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "":
		return NopSink{}, nil
	case "sqlite":
		return sqlite.New(dsn)
	case "postgres", "postgresql":
		return postgres.New(dsn)
	case "clickhouse":
		addr, table := parseClickHouseDSN(dsn)
		return clickhouse.New(addr, table)
	default:
		return nil, fmt.Errorf("audit: unknown driver %q (allowed: sqlite, postgres, clickhouse)", driver)
	}
}

func parseClickHouseDSN(dsn string) (addr, table string) {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return dsn, "process_audit"
	}
	table = u.Query().Get("table")
	if table == "" {
		table = "process_audit"
	}
	return u.Host, table
}
