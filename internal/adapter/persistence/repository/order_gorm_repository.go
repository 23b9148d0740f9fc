package repository

import (
	"context"
	"errors"
	"time"

	"restbucks/internal/domain/entities"
	"restbucks/internal/usecase/interfaces"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderModel maps the orders table for the MySQL store.
type OrderModel struct {
	ID                   string          `gorm:"primaryKey;size:36"`
	Drink                string          `gorm:"size:100;not null"`
	Size                 string          `gorm:"size:16;not null"`
	Milk                 string          `gorm:"size:32;not null"`
	Shots                int             `gorm:"not null"`
	Cost                 decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Status               string          `gorm:"size:16;index;not null"`
	Paid                 bool            `gorm:"index;not null"`
	CardLastFour         string          `gorm:"size:4"`
	PaymentTransactionID string          `gorm:"size:64"`
	PaidAt               *time.Time
	Version              int64 `gorm:"not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

type OrderGormRepository struct {
	db *gorm.DB
}

var _ interfaces.IOrderRepository = (*OrderGormRepository)(nil)

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

// Migrate creates or updates the orders table.
func (r *OrderGormRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&OrderModel{})
}

func (r *OrderGormRepository) Create(ctx context.Context, o entities.Order) (entities.Order, error) {
	if o.Version == 0 {
		o.Version = 1
	}
	m := toOrderModel(o)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return entities.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) GetByID(ctx context.Context, id string) (entities.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Order{}, nil
		}
		return entities.Order{}, err
	}
	return fromOrderModel(m), nil
}

func (r *OrderGormRepository) Update(ctx context.Context, o entities.Order) (entities.Order, error) {
	expected := o.Version
	o.Version++
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = nowUTC()
	}
	m := toOrderModel(o)
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND version = ?", o.ID, expected).
		Updates(map[string]interface{}{
			"drink":                  m.Drink,
			"size":                   m.Size,
			"milk":                   m.Milk,
			"shots":                  m.Shots,
			"cost":                   m.Cost,
			"status":                 m.Status,
			"paid":                   m.Paid,
			"card_last_four":         m.CardLastFour,
			"payment_transaction_id": m.PaymentTransactionID,
			"paid_at":                m.PaidAt,
			"version":                m.Version,
			"updated_at":             m.UpdatedAt,
		})
	if res.Error != nil {
		return entities.Order{}, res.Error
	}
	if res.RowsAffected == 0 {
		return entities.Order{}, interfaces.ErrOrderVersionConflict
	}
	return o, nil
}

func (r *OrderGormRepository) Delete(ctx context.Context, id string, version int64) error {
	res := r.db.WithContext(ctx).Where("id = ? AND version = ?", id, version).Delete(&OrderModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrOrderVersionConflict
	}
	return nil
}

func (r *OrderGormRepository) List(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	q := r.db.WithContext(ctx).Model(&OrderModel{})
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.Paid != nil {
		q = q.Where("paid = ?", *filter.Paid)
	}
	var models []OrderModel
	if err := q.Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Order, 0, len(models))
	for _, m := range models {
		out = append(out, fromOrderModel(m))
	}
	return out, nil
}

func (r *OrderGormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func toOrderModel(o entities.Order) OrderModel {
	return OrderModel{
		ID:                   o.ID,
		Drink:                o.Drink,
		Size:                 string(o.Size),
		Milk:                 o.Milk,
		Shots:                o.Shots,
		Cost:                 o.Cost,
		Status:               string(o.Status),
		Paid:                 o.Paid,
		CardLastFour:         o.CardLastFour,
		PaymentTransactionID: o.PaymentTransactionID,
		PaidAt:               o.PaidAt,
		Version:              o.Version,
		CreatedAt:            o.CreatedAt.UTC(),
		UpdatedAt:            o.UpdatedAt.UTC(),
	}
}

func fromOrderModel(m OrderModel) entities.Order {
	return entities.Order{
		ID:                   m.ID,
		Drink:                m.Drink,
		Size:                 entities.OrderSize(m.Size),
		Milk:                 m.Milk,
		Shots:                m.Shots,
		Cost:                 m.Cost,
		Status:               entities.OrderStatus(m.Status),
		Paid:                 m.Paid,
		CardLastFour:         m.CardLastFour,
		PaymentTransactionID: m.PaymentTransactionID,
		PaidAt:               m.PaidAt,
		Version:              m.Version,
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
}
