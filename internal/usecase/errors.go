package usecase

import (
	"errors"

	"restbucks/internal/usecase/interfaces"
)

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidOrderID         = errors.New("invalid order id")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")
	ErrConcurrentModification = errors.New("order was modified concurrently")

	ErrPaymentOverloaded  = errors.New("payment service overloaded")
	ErrPaymentUnavailable = errors.New("payment service unavailable")
	ErrPaymentRejected    = errors.New("payment rejected")
)

// IsStoreFailure tells the store circuit breaker which errors mean the store
// is unhealthy. A lost optimistic-lock race is a healthy round trip.
func IsStoreFailure(err error) bool {
	return err != nil && !errors.Is(err, interfaces.ErrOrderVersionConflict)
}
