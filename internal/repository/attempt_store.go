package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"EmeraldAgent/internal/domain/models"
	domrepo "EmeraldAgent/internal/domain/repository"
	applogger "EmeraldAgent/pkg/logger"
)

const attemptColumns = 7

// ClickHouseAttemptStore writes engine attempt telemetry to ClickHouse.
type ClickHouseAttemptStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseAttemptStore(db *sql.DB, table string, l *applogger.Logger) *ClickHouseAttemptStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &ClickHouseAttemptStore{db: db, table: table, l: l}
}

// AttemptSchema returns the idempotent DDL for the attempts table.
func AttemptSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            started_at  DateTime64(3, 'UTC'),
            request_id  String,
            symbol      LowCardinality(String),
            strategy    LowCardinality(String),
            outcome     LowCardinality(String),
            exit_code   Int32,
            duration_ms UInt64
        )
        ENGINE = MergeTree
        PARTITION BY toYYYYMM(started_at)
        ORDER BY (strategy, started_at)
        TTL toDateTime(started_at) + INTERVAL 30 DAY
    `, sanitizeIdent(table))}
}

// RecordAttempts inserts recs in one multi-row statement.
func (s *ClickHouseAttemptStore) RecordAttempts(ctx context.Context, recs []models.AttemptRecord) error {
	q, args := buildAttemptInsert(s.table, recs)
	if q == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse insert attempts error",
			applogger.String("table", s.table),
			applogger.Int("rows", len(recs)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert attempts: %w", err)
	}
	return nil
}

func buildAttemptInsert(table string, recs []models.AttemptRecord) (string, []interface{}) {
	values := make([]string, 0, len(recs))
	args := make([]interface{}, 0, len(recs)*attemptColumns)
	for _, r := range recs {
		if r.Strategy == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.StartedAt.UTC(),
			r.RequestID,
			r.Symbol,
			r.Strategy,
			r.Outcome,
			int32(r.ExitCode),
			uint64(r.Duration.Milliseconds()),
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (started_at, request_id, symbol, strategy, outcome, exit_code, duration_ms) VALUES %s",
		sanitizeIdent(table), strings.Join(values, ","))
	return q, args
}

// sanitizeIdent keeps a table name to identifier characters.
func sanitizeIdent(table string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		}
		return -1
	}, table)
}

func (s *ClickHouseAttemptStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseAttemptStore) Close() error {
	return nil
}

var _ domrepo.AttemptStore = (*ClickHouseAttemptStore)(nil)
