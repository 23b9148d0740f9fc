package interfaces

import (
	"context"

	"restbucks/internal/domain/entities"
)

//go:generate mockgen -source=order_event_publisher_interface.go -destination=mocks/mock_order_event_publisher.go -package=mock_interfaces

// IOrderEventPublisher announces committed order changes (Kafka, websocket).
type IOrderEventPublisher interface {
	Publish(ctx context.Context, event entities.OrderEvent) error
}
