package database

import (
	"embed"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies schema migrations. An empty dir uses the set embedded in
// the binary; otherwise the .sql files under dir are applied.
func Migrate(db *sqlx.DB, dir string) error {
	if dir == "" {
		goose.SetBaseFS(migrations)
		dir = "migrations"
	} else {
		goose.SetBaseFS(nil)
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("migrations dir: %w", err)
		}
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
