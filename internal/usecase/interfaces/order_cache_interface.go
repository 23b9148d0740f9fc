package interfaces

import (
	"context"
	"time"

	"restbucks/internal/domain/entities"
)

//go:generate mockgen -source=order_cache_interface.go -destination=mocks/mock_order_cache.go -package=mock_interfaces

// IOrderCache is a read-through cache in front of IOrderRepository.
// A miss is (zero, false, nil); errors are never fatal to callers.
type IOrderCache interface {
	Get(ctx context.Context, id string) (entities.Order, bool, error)
	Set(ctx context.Context, o entities.Order, ttl time.Duration) error
	Invalidate(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
