package pg

import (
	"fmt"

	_ "github.com/lib/pq"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate applies the goose migrations found in dir.
func Migrate(cfg Config, dir string) error {
	dialect := "postgres"
	if cfg.driver() == DriverSQLite {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	version, err := goose.GetDBVersion(db)
	if err == nil {
		logger.Info("migrations applied", "dir", dir, "version", version)
	}
	return nil
}
