package repository

import (
	"context"
	"sync"

	"restbucks/internal/domain/entities"
	"restbucks/internal/usecase/interfaces"

	"github.com/pkg/errors"
)

// OrderMemoryRepository keeps orders in process memory. It backs local runs
// (STORE_DRIVER=memory) and tests, with the same version semantics as the
// database repositories.
type OrderMemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]entities.Order
}

var _ interfaces.IOrderRepository = (*OrderMemoryRepository)(nil)

func NewOrderMemoryRepository() *OrderMemoryRepository {
	return &OrderMemoryRepository{orders: make(map[string]entities.Order)}
}

func (r *OrderMemoryRepository) Create(ctx context.Context, o entities.Order) (entities.Order, error) {
	if err := ctx.Err(); err != nil {
		return entities.Order{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID]; exists {
		return entities.Order{}, errors.Errorf("order %s already exists", o.ID)
	}
	if o.Version == 0 {
		o.Version = 1
	}
	r.orders[o.ID] = o
	return o, nil
}

func (r *OrderMemoryRepository) GetByID(ctx context.Context, id string) (entities.Order, error) {
	if err := ctx.Err(); err != nil {
		return entities.Order{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orders[id], nil
}

func (r *OrderMemoryRepository) Update(ctx context.Context, o entities.Order) (entities.Order, error) {
	if err := ctx.Err(); err != nil {
		return entities.Order{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok || stored.Version != o.Version {
		return entities.Order{}, interfaces.ErrOrderVersionConflict
	}
	o.Version++
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = nowUTC()
	}
	r.orders[o.ID] = o
	return o, nil
}

func (r *OrderMemoryRepository) Delete(ctx context.Context, id string, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok || stored.Version != version {
		return interfaces.ErrOrderVersionConflict
	}
	delete(r.orders, id)
	return nil
}

func (r *OrderMemoryRepository) List(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]entities.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.Matches(o) {
			out = append(out, o)
		}
	}
	r.mu.RUnlock()
	sortOrders(out)
	return out, nil
}

func (r *OrderMemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}
