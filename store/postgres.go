package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresSchema creates the table used by [Postgres].
const PostgresSchema = `CREATE TABLE IF NOT EXISTS stash_records (
	partition_key TEXT NOT NULL,
	row_key       TEXT NOT NULL,
	value         BYTEA NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	etag          TEXT NOT NULL,
	PRIMARY KEY (partition_key, row_key)
)`

// Postgres is a Store backed by a PostgreSQL table addressed by
// (partition_key, row_key).
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool for dsn using lib/pq.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return NewPostgres(db), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Ping checks the connection to the database.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// EnsureSchema creates the records table when it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, PostgresSchema)
	return err
}

// Get implements Store with a single query.
func (p *Postgres) Get(ctx context.Context, partition string, keys []string) ([]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT row_key, value, updated_at, etag FROM stash_records
		 WHERE partition_key = $1 AND row_key = ANY($2)`,
		partition, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("store: postgres select: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{PartitionKey: partition}
		if err := rows.Scan(&rec.RowKey, &rec.Value, &rec.Timestamp, &rec.ETag); err != nil {
			return nil, fmt.Errorf("store: postgres scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Upsert implements Store.
func (p *Postgres) Upsert(ctx context.Context, partition, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO stash_records (partition_key, row_key, value, updated_at, etag)
		 VALUES ($1, $2, $3, now(), $4)
		 ON CONFLICT (partition_key, row_key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, etag = EXCLUDED.etag`,
		partition, key, value, uuid.NewString())
	if err != nil {
		return fmt.Errorf("store: postgres upsert %s/%s: %w", partition, key, err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
