package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/money"
	"github.com/nimasrn/ledger-book/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Entities()...))
	return pg.NewDB(db, db)
}

func newCustomer(name, phone string) *model.Customer {
	now := time.Now()
	return &model.Customer{
		ID:          uuid.New(),
		Name:        name,
		Phone:       phone,
		CreatedDate: now,
		LastUpdated: now,
	}
}

func newTransaction(customerID uuid.UUID, typ model.TransactionType, amount string, date time.Time) *model.Transaction {
	return &model.Transaction{
		ID:         uuid.New(),
		CustomerID: customerID,
		Type:       typ,
		Amount:     money.MustParse(amount),
		Date:       date,
	}
}
