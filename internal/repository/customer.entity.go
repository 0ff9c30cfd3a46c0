package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/money"
)

type CustomerEntity struct {
	ID          uuid.UUID `db:"id"           gorm:"type:uuid;primaryKey;column:id"`
	Name        string    `db:"name"         gorm:"column:name;not null;index"`
	Phone       string    `db:"phone"        gorm:"column:phone;not null"`
	Address     *string   `db:"address"      gorm:"column:address"`
	Photo       []byte    `db:"photo"        gorm:"column:photo"`
	TotalDue    int64     `db:"total_due"    gorm:"column:total_due;not null;default:0"`
	CreatedDate time.Time `db:"created_date" gorm:"column:created_date;not null"`
	LastUpdated time.Time `db:"last_updated" gorm:"column:last_updated;not null;index"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	if m == nil {
		return nil
	}
	return &CustomerEntity{
		ID:          m.ID,
		Name:        m.Name,
		Phone:       m.Phone,
		Address:     m.Address,
		Photo:       m.Photo,
		TotalDue:    m.TotalDue.Minor(),
		CreatedDate: m.CreatedDate.UTC(),
		LastUpdated: m.LastUpdated.UTC(),
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:          e.ID,
		Name:        e.Name,
		Phone:       e.Phone,
		Address:     e.Address,
		Photo:       e.Photo,
		TotalDue:    money.Amount(e.TotalDue),
		CreatedDate: e.CreatedDate,
		LastUpdated: e.LastUpdated,
	}
}

func toCustomerModels(entities []*CustomerEntity) []*model.Customer {
	if entities == nil {
		return nil
	}
	models := make([]*model.Customer, len(entities))
	for i, e := range entities {
		models[i] = toCustomerModel(e)
	}
	return models
}
