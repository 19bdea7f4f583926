package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
)

// AuditStore is a PostgreSQL-backed implementation of audit.Logger.
type AuditStore struct {
	pool   *pgxpool.Pool
	schema string
	owned  bool
}

var _ audit.Logger = (*AuditStore)(nil)

// NewAuditStore connects with the given configuration and, if configured,
// creates the table.
func NewAuditStore(ctx context.Context, cfg Config, opts ...ConfigOption) (*AuditStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := NewAuditStoreFromPool(pool, cfg.Schema)
	s.owned = true
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewAuditStoreFromPool creates an audit store on an existing pool. Close
// leaves the pool open.
func NewAuditStoreFromPool(pool *pgxpool.Pool, schema string) *AuditStore {
	if schema == "" {
		schema = "public"
	}
	return &AuditStore{
		pool:   pool,
		schema: schema,
	}
}

// tableName returns the fully qualified table name.
func (s *AuditStore) tableName() string {
	return pgx.Identifier{s.schema, "audit_events"}.Sanitize()
}

// Migrate creates the audit table and its indexes.
func (s *AuditStore) Migrate(ctx context.Context) error {
	table := s.tableName()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			tool_use_id TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL,
			data JSONB NOT NULL
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS audit_events_timestamp_idx ON %s (timestamp)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS audit_events_tool_use_idx ON %s (tool_use_id)`, table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return errors.Join(ErrMigrationFailed, err)
		}
	}
	return nil
}

// Log persists one event.
func (s *AuditStore) Log(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, timestamp, event_type, tool_use_id, tool_name, success, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.tableName()),
		uuid.New(),
		event.Timestamp,
		string(event.EventType),
		event.ToolUseID,
		event.ToolName,
		event.Success,
		data,
	)
	return s.wrapError(err)
}

// Query retrieves events matching the filter in timestamp order.
func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	query, args := s.buildQuerySQL(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, s.wrapError(err)
		}
		var e audit.Event
		if err := json.Unmarshal(data, &e); err != nil {
			continue // Skip malformed entries
		}
		events = append(events, e)
	}
	return events, s.wrapError(rows.Err())
}

// buildQuerySQL renders the filter as a parameterized query.
func (s *AuditStore) buildQuerySQL(filter audit.Filter) (string, []any) {
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= "+arg(filter.StartTime))
	}
	if !filter.EndTime.IsZero() {
		conditions = append(conditions, "timestamp <= "+arg(filter.EndTime))
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			types[i] = string(t)
		}
		conditions = append(conditions, "event_type = ANY("+arg(types)+")")
	}
	if filter.ToolUseID != "" {
		conditions = append(conditions, "tool_use_id = "+arg(filter.ToolUseID))
	}
	if filter.ToolName != "" {
		conditions = append(conditions, "tool_name = "+arg(filter.ToolName))
	}
	if filter.Success != nil {
		conditions = append(conditions, "success = "+arg(*filter.Success))
	}

	query := "SELECT data FROM " + s.tableName()
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	return query, args
}

// Close releases the pool when the store opened it.
func (s *AuditStore) Close() error {
	if s.owned && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// wrapError wraps database errors with package errors.
func (s *AuditStore) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrOperationTimeout, err)
	}
	return errors.Join(ErrConnectionFailed, err)
}
