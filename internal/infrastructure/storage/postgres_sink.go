package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

// PostgresSink loads merged committee roles into Postgres. Upserts are keyed by
// (user_discovery_id, teaching_discovery_id) so re-running load after a fresh
// merge is idempotent.
type PostgresSink struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RoleSink = (*PostgresSink)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresSink(db), nil
}

// NewPostgresSink wires an existing sql.DB.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the underlying connection pool.
func (s *PostgresSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertRoles writes one batch of roles for a single subject.
func (s *PostgresSink) UpsertRoles(ctx context.Context, roles []domain.CommitteeRole) error {
	if s.db == nil || len(roles) == 0 {
		return nil
	}

	insert := s.builder.
		Insert("committee_roles").
		Columns("user_discovery_id", "user_discovery_url_id", "user_name",
			"teaching_discovery_id", "title", "status", "start_date", "end_date").
		Suffix(`ON CONFLICT (user_discovery_id, teaching_discovery_id) DO UPDATE
              SET title = EXCLUDED.title,
                  status = EXCLUDED.status,
                  start_date = EXCLUDED.start_date,
                  end_date = EXCLUDED.end_date,
                  updated_at = NOW()`)

	for _, role := range roles {
		insert = insert.Values(
			role.UserDiscoveryID,
			role.UserDiscoveryURLID,
			role.UserName,
			role.TeachingDiscoveryID,
			role.Title,
			string(role.Status),
			nullable(role.StartDate),
			nullable(role.EndDate),
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert roles: %w", err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
