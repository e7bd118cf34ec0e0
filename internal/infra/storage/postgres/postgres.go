package postgres

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	"github.com/pressly/goose/v3"
)

const (
	DriverPgx = "pgx"
	DriverPQ  = "postgres"
)

//go:embed migrations/*.sql
var migrations embed.FS

func checkDriver(name string) error {
	switch name {
	case DriverPgx, DriverPQ:
		return nil
	}
	return fmt.Errorf("unsupported database driver %q", name)
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}
