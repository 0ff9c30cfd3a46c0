// Package app wires configuration, storage and services for the binaries
// under cmd/.
package app

import (
	"context"
	"os"
	"strings"

	"github.com/nimasrn/ledger-book/internal/config"
	"github.com/nimasrn/ledger-book/internal/events"
	"github.com/nimasrn/ledger-book/internal/repository"
	"github.com/nimasrn/ledger-book/internal/services"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/nimasrn/ledger-book/pkg/pg"
	"github.com/nimasrn/ledger-book/pkg/redis"
)

// EnvPath returns the value of a --env=<file> argument when the file exists.
func EnvPath(args []string) string {
	for _, v := range args {
		if !strings.HasPrefix(v, "--env=") && !strings.HasPrefix(v, "-env=") {
			continue
		}
		path := v[strings.Index(v, "=")+1:]
		if _, err := os.Stat(path); err != nil {
			logger.Error("failed to open the passed env file", "path", path, "error", err)
			return ""
		}
		return path
	}
	return ""
}

// Init loads the configuration and reconfigures the logger from it.
func Init(args []string) error {
	if err := config.Load(EnvPath(args)); err != nil {
		return err
	}
	c := config.Get()
	return logger.Configure(c.LogEnv, c.LogLevel)
}

func OpenDB() (*pg.DB, error) {
	c := config.Get()
	return pg.CreateReadWrite(c.ReadDB(), c.WriteDB(), c.AppDebug)
}

// OpenRedis returns nil without error when REDIS_ADDR is not set.
func OpenRedis() (redis.RedisAdapter, error) {
	c := config.Get()
	if !c.RedisEnabled() {
		return nil, nil
	}
	return redis.NewRedisAdapter("default", c.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: c.AppName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	})
}

func EventsConfig() events.Config {
	c := config.Get()
	return events.Config{
		Stream:            c.EventStream,
		ConsumerGroup:     c.EventConsumerGroup,
		ConsumerName:      c.EventConsumerName,
		MaxRetries:        c.EventMaxRetries,
		VisibilityTimeout: c.EventVisibilityTimeout,
		PollInterval:      c.EventPollInterval,
		BatchSize:         c.EventBatchSize,
		MaxLen:            c.EventMaxLen,
		EnableDLQ:         c.EventEnableDLQ,
	}
}

// Ledger is the fully wired service graph.
type Ledger struct {
	DB           *pg.DB
	Redis        redis.RedisAdapter
	Events       *events.Stream
	Customers    *repository.CustomerRepository
	Transactions *repository.TransactionRepository

	Ledger     *services.LedgerService
	View       *services.CustomerViewService
	Reports    *services.ReportService
	Statements *services.StatementService
	Health     *services.HealthService
}

// NewLedger builds the services over db. When rdb is set, committed
// mutations are published to the event stream.
func NewLedger(ctx context.Context, db *pg.DB, rdb redis.RedisAdapter) (*Ledger, error) {
	loc := config.Get().Location()
	l := &Ledger{
		DB:           db,
		Redis:        rdb,
		Customers:    repository.NewCustomerRepository(db),
		Transactions: repository.NewTransactionRepository(db),
		Health:       services.NewHealthService().Register("database", db),
	}

	var opts []services.LedgerOption
	if rdb != nil {
		stream, err := events.NewStream(ctx, rdb, EventsConfig())
		if err != nil {
			return nil, err
		}
		l.Events = stream
		opts = append(opts, services.WithEventPublisher(stream))
		l.Health.Register("redis", rdb)
	}

	l.Ledger = services.NewLedgerService(l.Customers, l.Transactions, opts...)
	l.View = services.NewCustomerViewService(l.Customers)
	l.Reports = services.NewReportService(l.Transactions, services.WithLocation(loc))
	l.Statements = services.NewStatementService(l.Customers, l.Transactions, loc)
	return l, nil
}

func (l *Ledger) Close() {
	if err := l.DB.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
	if l.Redis != nil {
		if err := redis.Close("default"); err != nil {
			logger.Warn("failed to close redis", "error", err)
		}
	}
}
