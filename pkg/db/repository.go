package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

const entryColumns = `key, value, revision, created, modified, modified_by`

// Repository provides database access for storage entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetEntry returns the entry stored under key, or ErrNotFound.
func (r *Repository) GetEntry(ctx context.Context, key string) (*KVEntry, error) {
	slog.Debug(fmt.Sprintf("%s - GetEntry key=%s", repoLogPrefix, key))

	row := r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM kv_entries WHERE key = $1`, key)
	return scanEntry(row)
}

// PutEntry creates or replaces the value under key and bumps its revision.
func (r *Repository) PutEntry(ctx context.Context, key string, value []byte, modifiedBy string) (*KVEntry, error) {
	slog.Debug(fmt.Sprintf("%s - PutEntry key=%s", repoLogPrefix, key))

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO kv_entries (key, value, revision, created, modified, modified_by)
		 VALUES ($1, $2, 1, $3, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET
		   value = EXCLUDED.value,
		   revision = kv_entries.revision + 1,
		   modified = EXCLUDED.modified,
		   modified_by = EXCLUDED.modified_by
		 RETURNING `+entryColumns,
		key, value, now, modifiedBy)
	return scanEntry(row)
}

// DeleteEntry removes key and returns the deleted row, or ErrNotFound.
func (r *Repository) DeleteEntry(ctx context.Context, key string) (*KVEntry, error) {
	slog.Debug(fmt.Sprintf("%s - DeleteEntry key=%s", repoLogPrefix, key))

	row := r.pool.QueryRow(ctx,
		`DELETE FROM kv_entries WHERE key = $1 RETURNING `+entryColumns, key)
	return scanEntry(row)
}

// ListKeys returns the sorted keys starting with prefix.
func (r *Repository) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT key FROM kv_entries WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("%s - ListKeys failed: %w", repoLogPrefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s - ListKeys scan failed: %w", repoLogPrefix, err)
	}
	return keys, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanEntry(row pgx.Row) (*KVEntry, error) {
	var e KVEntry
	var modifiedBy *string
	err := row.Scan(&e.Key, &e.Value, &e.Revision, &e.Created, &e.Modified, &modifiedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan entry failed: %w", repoLogPrefix, err)
	}
	if modifiedBy != nil {
		e.ModifiedBy = *modifiedBy
	}
	return &e, nil
}
