package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/money"
	"github.com/nimasrn/ledger-book/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, translate(err, ErrCustomerNotFound)
	}

	return toCustomerModel(entity), nil
}

func (r *CustomerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		return nil, translate(err, ErrCustomerNotFound)
	}
	return toCustomerModel(&entity), nil
}

// Update writes the profile fields and last_updated. The balance and the
// creation date are never touched here.
func (r *CustomerRepository) Update(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	e := toCustomerEntity(c)
	result := r.Write(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", e.ID).
		Updates(map[string]any{
			"name":         e.Name,
			"phone":        e.Phone,
			"address":      e.Address,
			"photo":        e.Photo,
			"last_updated": e.LastUpdated,
		})
	if result.Error != nil {
		return nil, translate(result.Error, ErrCustomerNotFound)
	}
	if result.RowsAffected == 0 {
		return nil, ErrCustomerNotFound
	}
	return r.getForWrite(ctx, e.ID)
}

func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&CustomerEntity{})
	if result.Error != nil {
		return translate(result.Error, ErrCustomerNotFound)
	}
	if result.RowsAffected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// List returns every customer ordered by name, then id.
func (r *CustomerRepository) List(ctx context.Context) ([]*model.Customer, error) {
	var entities []*CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("name ASC").
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toCustomerModels(entities), nil
}

// ApplyDelta adds delta to the customer's total due and stamps last_updated
// under a row lock. It returns the customer as written.
func (r *CustomerRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta money.Amount, at time.Time) (*model.Customer, error) {
	var entity CustomerEntity

	// SELECT FOR UPDATE, held until the surrounding transaction ends
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		return nil, translate(err, ErrCustomerNotFound)
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_due":    gorm.Expr("total_due + ?", delta.Minor()),
			"last_updated": at.UTC(),
		})
	if result.Error != nil {
		return nil, translate(result.Error, ErrCustomerNotFound)
	}
	if result.RowsAffected == 0 {
		return nil, ErrCustomerNotFound
	}

	return r.getForWrite(ctx, id)
}

// SumTransactions recomputes the balance from the transaction rows.
func (r *CustomerRepository) SumTransactions(ctx context.Context, id uuid.UUID) (money.Amount, error) {
	var sum int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Select("CAST(COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0) AS BIGINT)", string(model.TransactionCredit)).
		Where("customer_id = ?", id).
		Scan(&sum).
		Error
	if err != nil {
		return 0, err
	}
	return money.Amount(sum), nil
}

func (r *CustomerRepository) getForWrite(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var entity CustomerEntity
	if err := r.Write(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, translate(err, ErrCustomerNotFound)
	}
	return toCustomerModel(&entity), nil
}
