package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearEntries truncates kv_entries. The schema is preserved.
func ClearEntries(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing storage entries", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE kv_entries`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Storage cleared", clearLogPrefix))
	return nil
}
