package workflow

import "restbucks/internal/domain/entities"

// Transition names an operation a client may perform next.
type Transition string

const (
	TransitionUpdate  Transition = "update"
	TransitionPayment Transition = "payment"
	TransitionCancel  Transition = "cancel"
	TransitionPrepare Transition = "prepare"
	TransitionReady   Transition = "ready"
	TransitionDeliver Transition = "deliver"
)

// AvailableTransitions lists what the state machine would accept for order.
func AvailableTransitions(order entities.Order) []Transition {
	switch order.Status {
	case entities.OrderStatusPending:
		if !order.Paid {
			return []Transition{TransitionUpdate, TransitionPayment, TransitionCancel}
		}
		return []Transition{TransitionPrepare}
	case entities.OrderStatusPreparing:
		return []Transition{TransitionReady}
	case entities.OrderStatusReady:
		return []Transition{TransitionDeliver}
	}
	return nil
}
