package pg

import (
	"database/sql"
	"fmt"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver   string `env:"DRIVER"`
	User     string `env:"USER"`
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`
	Password string `env:"PASSWORD"`
	Database string `env:"DBNAME"`
	// Path is the database file used by the sqlite driver.
	Path string `env:"PATH"`
}

func (c Config) driver() string {
	if c.Driver == "" {
		return DriverPostgres
	}
	return c.Driver
}

func (c Config) dsn() string {
	if c.driver() == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable", c.Host, c.User, c.Password, c.Database, c.Port)
}

func newSqlConnection(config Config) (*sql.DB, error) {
	switch config.driver() {
	case DriverSQLite:
		// registered by gorm.io/driver/sqlite (mattn/go-sqlite3)
		return sql.Open("sqlite3", config.dsn())
	case DriverPostgres:
		return sql.Open("postgres", config.dsn())
	}
	return nil, fmt.Errorf("unsupported db driver %q", config.Driver)
}
