package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func migrationSource() *migrate.EmbedFileSystemMigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFS,
		Root:       "migrations",
	}
}

// Migrate applies all pending up migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return run(ctx, pool, migrate.Up, 0)
}

// Rollback reverts at most steps migrations.
func Rollback(ctx context.Context, pool *pgxpool.Pool, steps int) error {
	return run(ctx, pool, migrate.Down, steps)
}

func run(ctx context.Context, pool *pgxpool.Pool, dir migrate.MigrationDirection, limit int) error {
	// The *sql.DB borrows connections from pool and keeps none idle.
	db := stdlib.OpenDBFromPool(pool)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := migrate.ExecMax(db, "postgres", migrationSource(), dir, limit)
		done <- result{n: n, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("migration interrupted: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("db migrations have failed: %w", res.err)
		}
		slog.Default().InfoContext(ctx, "migrations applied", slog.Int("count", res.n))
		return nil
	}
}
