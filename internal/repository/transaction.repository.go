package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/pg"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, translate(err, ErrTransactionNotFound)
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		return nil, translate(err, ErrTransactionNotFound)
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&TransactionEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// DeleteByCustomer removes every transaction of the customer and returns how many were removed.
func (r *TransactionRepository) DeleteByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&TransactionEntity{})
	return result.RowsAffected, result.Error
}

// ListByCustomer returns the customer's transactions by date, newest first when desc is set.
func (r *TransactionRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, desc bool) ([]*model.Transaction, error) {
	order := "date ASC"
	if desc {
		order = "date DESC"
	}

	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order(order).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// ListSince returns every transaction dated at or after from.
func (r *TransactionRepository) ListSince(ctx context.Context, from time.Time) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("date >= ?", from.UTC()).
		Order("date ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}
