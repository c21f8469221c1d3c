// Package migrations embeds SQL migration files and provides a function to apply them.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Dialect is the goose dialect of the bot database.
const Dialect = "sqlite3"

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS

// Setup points goose at the embedded migrations.
func Setup() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect(Dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Run applies all pending migrations to the given database without logging each step.
func Run(db *sql.DB) error {
	if err := Setup(); err != nil {
		return err
	}
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
