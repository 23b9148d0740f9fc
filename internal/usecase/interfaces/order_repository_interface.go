package interfaces

import (
	"context"
	"errors"

	"restbucks/internal/domain/entities"
)

//go:generate mockgen -source=order_repository_interface.go -destination=mocks/mock_order_repository.go -package=mock_interfaces

// ErrOrderVersionConflict is returned by Update and Delete when the stored
// version no longer matches the caller's copy.
var ErrOrderVersionConflict = errors.New("order version conflict")

// IOrderRepository abstracts persistence for Order.
//
// The order service must be able to:
//   - create an order with a fresh id (version 1)
//   - load an order by id (zero Order when missing)
//   - update an order only if nobody else changed it since it was read
//   - delete a cancelled order under the same version check
//   - list orders by status / paid flag

type IOrderRepository interface {
	Create(ctx context.Context, o entities.Order) (entities.Order, error)
	GetByID(ctx context.Context, id string) (entities.Order, error)
	// Update persists o if the stored version equals o.Version and returns
	// the order with Version incremented.
	Update(ctx context.Context, o entities.Order) (entities.Order, error)
	Delete(ctx context.Context, id string, version int64) error
	List(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error)
	Ping(ctx context.Context) error
}
