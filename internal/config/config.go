package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/nimasrn/ledger-book/pkg/pg"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every configuration value of the ledger binaries. Only this
// struct must be used to read configuration; no direct access to env or any
// other config source should be made.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=ledger_book"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`
	// AppTimezone is the location used for report period boundaries.
	AppTimezone string `env:"APP_TIMEZONE,default=Local"`

	HttpListenAddr         string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout  time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=2500ms"`
	HttpServerWriteTimeout time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT,default=2500ms"`
	HttpRequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`

	StatementListenAddr string `env:"STATEMENT_LISTEN_ADDR,default=:8090"`

	DBDriver   string `env:"DB_DRIVER,default=postgres"`
	SqlitePath string `env:"SQLITE_PATH,default=ledger.db"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	MigrationsDir string `env:"MIGRATIONS_DIR"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=ledger:"`

	PromNamespace     string `env:"PROM_NAMESPACE,default=ledger_book"`
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR,default=:9100"`
	MetricsURI        string `env:"METRICS_URI,default=/metrics"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogEnv   string `env:"LOG_ENV,default=development"`

	EventStream            string        `env:"EVENT_STREAM,default=ledger-events"`
	EventConsumerGroup     string        `env:"EVENT_CONSUMER_GROUP,default=ledger-processor"`
	EventConsumerName      string        `env:"EVENT_CONSUMER_NAME,default=processor-1"`
	EventMaxRetries        int           `env:"EVENT_MAX_RETRIES,default=3"`
	EventVisibilityTimeout time.Duration `env:"EVENT_VISIBILITY_TIMEOUT,default=30s"`
	EventPollInterval      time.Duration `env:"EVENT_POLL_INTERVAL,default=200ms"`
	EventBatchSize         int64         `env:"EVENT_BATCH_SIZE,default=50"`
	EventMaxLen            int64         `env:"EVENT_MAX_LEN,default=100000"`
	EventEnableDLQ         bool          `env:"EVENT_ENABLE_DLQ,default=true"`
	EventWorkers           int           `env:"EVENT_WORKERS,default=4"`
	EventDedupTTL          time.Duration `env:"EVENT_DEDUP_TTL,default=24h"`

	LockJWTSecret  string        `env:"LOCK_JWT_SECRET"`
	LockSessionTTL time.Duration `env:"LOCK_SESSION_TTL,default=12h"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}
	if err := c.validate(); err != nil {
		return err
	}

	config = c
	return nil
}

// Set replaces the loaded configuration, tests use it.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case pg.DriverPostgres:
		if c.PostgresWriteHost == "" || c.PostgresWriteDatabase == "" {
			return errors.New("POSTGRES_WRITE_HOST and POSTGRES_WRITE_DBNAME are required for the postgres driver")
		}
	case pg.DriverSQLite:
		if c.SqlitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return errors.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return errors.Wrapf(err, "invalid APP_TIMEZONE %q", c.AppTimezone)
	}
	return nil
}

// Location returns the configured report timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// WriteDB returns the primary database config.
func (c *Config) WriteDB() pg.Config {
	if c.DBDriver == pg.DriverSQLite {
		return pg.Config{Driver: pg.DriverSQLite, Path: c.SqlitePath}
	}
	return pg.Config{
		Driver:   pg.DriverPostgres,
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

// ReadDB returns the replica config, falling back to the primary when no replica is set.
func (c *Config) ReadDB() pg.Config {
	if c.DBDriver == pg.DriverSQLite || c.PostgresReadHost == "" {
		return c.WriteDB()
	}
	return pg.Config{
		Driver:   pg.DriverPostgres,
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

// Migrations returns the goose directory for the configured driver.
func (c *Config) Migrations() string {
	if c.MigrationsDir != "" {
		return c.MigrationsDir
	}
	return "./migrations/" + c.DBDriver
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}
