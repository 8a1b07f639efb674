package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridfeed/gridfeed/internal/engine"
)

// Store persists resolved resource records and read-operation audit rows.
// The decoding engine itself never touches the database; the store is the
// catalog-registration collaborator consuming resolver output.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store on top of a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS catalog_resources (
    source         TEXT NOT NULL,
    original_name  TEXT NOT NULL,
    resource_id    TEXT NOT NULL,
    unit           TEXT,
    resource_group TEXT,
    build_id       UUID NOT NULL,
    built_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (source, resource_id)
);

CREATE TABLE IF NOT EXISTS read_operations (
    id          UUID PRIMARY KEY,
    source      TEXT NOT NULL,
    resources   INT NOT NULL,
    slots       INT NOT NULL,
    files       INT NOT NULL,
    duration_ms BIGINT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the catalog tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure catalog schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// StoredResource is one persisted catalog entry.
type StoredResource struct {
	Source       string    `json:"source"`
	OriginalName string    `json:"originalName"`
	ResourceID   string    `json:"resourceId"`
	Unit         string    `json:"unit,omitempty"`
	Group        string    `json:"group,omitempty"`
	BuildID      string    `json:"buildId"`
	BuiltAt      time.Time `json:"builtAt"`
}

// ReplaceResources swaps a source's catalog entries for the given resolver
// output in one transaction. Catalog entries are transient by contract:
// every build replaces the previous one wholesale.
func (s *Store) ReplaceResources(ctx context.Context, source string, buildID uuid.UUID, resources []*engine.ResourceDescriptor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM catalog_resources WHERE source = $1`, source); err != nil {
		return fmt.Errorf("clear previous catalog for %s: %w", source, err)
	}

	batch := &pgx.Batch{}
	for _, res := range resources {
		if res == nil {
			// Dropped column; positions matter only to the resolver's callers.
			continue
		}
		batch.Queue(
			`INSERT INTO catalog_resources (source, original_name, resource_id, unit, resource_group, build_id)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			source,
			res.OriginalName,
			res.ResourceID,
			pgtype.Text{String: res.Unit, Valid: res.Unit != ""},
			pgtype.Text{String: res.Group, Valid: res.Group != ""},
			pgtype.UUID{Bytes: buildID, Valid: true},
		)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert catalog entries for %s: %w", source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListResources returns the stored catalog entries for one source, ordered
// by resource id.
func (s *Store) ListResources(ctx context.Context, source string) ([]StoredResource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, original_name, resource_id, unit, resource_group, build_id, built_at
		 FROM catalog_resources
		 WHERE source = $1
		 ORDER BY resource_id`,
		source)
	if err != nil {
		return nil, fmt.Errorf("list resources for %s: %w", source, err)
	}
	defer rows.Close()

	var result []StoredResource
	for rows.Next() {
		var (
			res         StoredResource
			unit, group pgtype.Text
			buildID     pgtype.UUID
			builtAt     pgtype.Timestamptz
		)
		if err := rows.Scan(&res.Source, &res.OriginalName, &res.ResourceID, &unit, &group, &buildID, &builtAt); err != nil {
			return nil, fmt.Errorf("scan resource row: %w", err)
		}
		res.Unit = unit.String
		res.Group = group.String
		res.BuildID = uuid.UUID(buildID.Bytes).String()
		res.BuiltAt = builtAt.Time
		result = append(result, res)
	}
	return result, rows.Err()
}

// ReadAudit summarizes one completed read operation.
type ReadAudit struct {
	ID        uuid.UUID
	Source    string
	Resources int
	Slots     int
	Files     int
	Duration  time.Duration
}

// RecordRead stores an audit row for a read operation. Failures here are the
// caller's to log; auditing never blocks a read result.
func (s *Store) RecordRead(ctx context.Context, audit ReadAudit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO read_operations (id, source, resources, slots, files, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		pgtype.UUID{Bytes: audit.ID, Valid: true},
		audit.Source,
		audit.Resources,
		audit.Slots,
		audit.Files,
		audit.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record read operation: %w", err)
	}
	return nil
}
