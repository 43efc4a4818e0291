package persist

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// The identity-link schema ships inside the binary; operators never
// manage migration files separately.
//
//go:embed migrations/*.sql
var linkMigrations embed.FS

// RunMigrations brings the identity-link schema up to date. Goose
// wants a database/sql handle, so the pgx pool is wrapped for the
// duration of the run.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(linkMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply link migrations: %w", err)
	}

	return nil
}
