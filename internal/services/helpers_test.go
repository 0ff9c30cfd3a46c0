package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/internal/repository"
	"github.com/nimasrn/ledger-book/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []model.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

type ledgerEnv struct {
	db           *pg.DB
	customers    *repository.CustomerRepository
	transactions *repository.TransactionRepository
	clock        *fakeClock
	events       *recordingPublisher
	ledger       *LedgerService
}

// wednesday, 13 March 2024
var testNow = time.Date(2024, 3, 13, 10, 30, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(repository.Entities()...))
	return pg.NewDB(db, db)
}

func setupLedger(t *testing.T) *ledgerEnv {
	db := setupTestDB(t)
	env := &ledgerEnv{
		db:           db,
		customers:    repository.NewCustomerRepository(db),
		transactions: repository.NewTransactionRepository(db),
		clock:        newFakeClock(testNow),
		events:       &recordingPublisher{},
	}
	env.ledger = NewLedgerService(env.customers, env.transactions,
		WithClock(env.clock.Now),
		WithEventPublisher(env.events),
	)
	return env
}

func (e *ledgerEnv) addCustomer(t *testing.T, name, phone string) *model.Customer {
	c, err := e.ledger.AddCustomer(context.Background(), model.CustomerInput{Name: name, Phone: phone})
	require.NoError(t, err)
	return c
}

func (e *ledgerEnv) addTx(t *testing.T, c *model.Customer, typ model.TransactionType, amount string) *model.Transaction {
	tx, err := e.ledger.AddTransaction(context.Background(), model.TransactionInput{
		CustomerID: c.ID,
		Type:       typ,
		Amount:     mustAmount(amount),
	})
	require.NoError(t, err)
	return tx
}

func (e *ledgerEnv) requireConsistent(t *testing.T, c *model.Customer) *model.Customer {
	ctx := context.Background()
	got, err := e.ledger.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	sum, err := e.customers.SumTransactions(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, sum, got.TotalDue, "total due must equal the summation of transactions")
	return got
}

// failingTransactions fails Create after delegating the rest.
type failingTransactions struct {
	TransactionStore
}

var errDiskFull = errors.New("disk full")

func (f failingTransactions) Create(context.Context, *model.Transaction) (*model.Transaction, error) {
	return nil, errDiskFull
}
