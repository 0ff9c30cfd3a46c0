package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/config"
	"github.com/nimasrn/ledger-book/internal/repository"
	"github.com/nimasrn/ledger-book/pkg/money"
	"github.com/nimasrn/ledger-book/pkg/pg"
	"github.com/nimasrn/ledger-book/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// SetupTestDB returns an in-memory sqlite ledger schema.
func SetupTestDB(t *testing.T) *pg.DB {
	gdb, err := pg.Create(pg.Config{Driver: pg.DriverSQLite, Path: ":memory:"}, false)
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(repository.Entities()...))

	db := pg.NewDB(gdb, gdb)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// SetupTestRedis starts a miniredis and registers an adapter under a name
// unique to the test.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redis.Close(connName) })

	return mr, adapter
}

// SetupTestConfig installs a sqlite/UTC configuration with a fast event stream.
func SetupTestConfig(t *testing.T, stream string) *config.Config {
	c := &config.Config{
		AppEnv:                 "test",
		AppName:                "ledger_test",
		AppTimezone:            "UTC",
		DBDriver:               pg.DriverSQLite,
		SqlitePath:             ":memory:",
		EventStream:            stream,
		EventConsumerGroup:     "e2e",
		EventConsumerName:      "e2e-1",
		EventMaxRetries:        3,
		EventVisibilityTimeout: time.Second,
		EventPollInterval:      20 * time.Millisecond,
		EventBatchSize:         10,
		EventMaxLen:            1000,
		EventEnableDLQ:         true,
		EventWorkers:           2,
		EventDedupTTL:          time.Hour,
		LockJWTSecret:          "e2e-secret",
		LockSessionTTL:         time.Hour,
	}
	config.Set(c)
	return c
}

func CreateTestCustomer(t *testing.T, db *pg.DB, name, phone string, totalDue string) *repository.CustomerEntity {
	ctx := context.Background()
	now := time.Now().UTC()
	customer := &repository.CustomerEntity{
		ID:          uuid.New(),
		Name:        name,
		Phone:       phone,
		TotalDue:    money.MustParse(totalDue).Minor(),
		CreatedDate: now,
		LastUpdated: now,
	}
	err := db.Write(ctx).Create(customer).Error
	require.NoError(t, err)
	return customer
}

// SummedDue recomputes a customer's balance from its stored transactions.
func SummedDue(t *testing.T, db *pg.DB, customerID uuid.UUID) money.Amount {
	ctx := context.Background()
	var rows []repository.TransactionEntity
	require.NoError(t, db.Read(ctx).Where("customer_id = ?", customerID).Find(&rows).Error)

	var sum money.Amount
	for _, r := range rows {
		if r.Type == "payment" {
			sum = sum.Sub(money.Amount(r.Amount))
			continue
		}
		sum = sum.Add(money.Amount(r.Amount))
	}
	return sum
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
