package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/money"
)

type TransactionEntity struct {
	ID         uuid.UUID `db:"id"          gorm:"type:uuid;primaryKey;column:id"`
	CustomerID uuid.UUID `db:"customer_id" gorm:"type:uuid;column:customer_id;not null;index"`
	Type       string    `db:"type"        gorm:"column:type;not null"`
	Amount     int64     `db:"amount"      gorm:"column:amount;not null"`
	Date       time.Time `db:"date"        gorm:"column:date;not null;index"`
	Note       *string   `db:"note"        gorm:"column:note"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

// Entities lists the gorm models of the ledger schema.
func Entities() []any {
	return []any{&CustomerEntity{}, &TransactionEntity{}}
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Type:       string(m.Type),
		Amount:     m.Amount.Minor(),
		Date:       m.Date.UTC(),
		Note:       m.Note,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:         e.ID,
		CustomerID: e.CustomerID,
		Type:       model.TransactionType(e.Type),
		Amount:     money.Amount(e.Amount),
		Date:       e.Date,
		Note:       e.Note,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
