package workflow

import (
	"errors"
	"fmt"

	"restbucks/internal/domain/entities"

	"github.com/shopspring/decimal"
)

var (
	ErrConflict          = errors.New("order state conflict")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidCard       = errors.New("invalid card number")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInsufficientFunds = errors.New("insufficient amount")
	ErrChargerMissing    = errors.New("payment charger not configured")
)

type ConflictReason string

const (
	ReasonAlreadyPreparing  ConflictReason = "already_preparing"
	ReasonAlreadyPaid       ConflictReason = "already_paid"
	ReasonNotPending        ConflictReason = "not_pending"
	ReasonNotPaid           ConflictReason = "not_paid"
	ReasonInvalidTransition ConflictReason = "invalid_transition"
)

var (
	ErrAlreadyPreparing  = &ConflictError{Reason: ReasonAlreadyPreparing}
	ErrAlreadyPaid       = &ConflictError{Reason: ReasonAlreadyPaid}
	ErrNotPending        = &ConflictError{Reason: ReasonNotPending}
	ErrNotPaid           = &ConflictError{Reason: ReasonNotPaid}
	ErrInvalidTransition = &ConflictError{Reason: ReasonInvalidTransition}
)

// ConflictError reports a transition the current order state forbids.
// errors.Is matches ErrConflict and any ConflictError with the same Reason.
type ConflictError struct {
	Reason ConflictReason
	From   entities.OrderStatus
	To     entities.OrderStatus
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ReasonAlreadyPreparing:
		return "order is already being prepared"
	case ReasonAlreadyPaid:
		return "order is already paid"
	case ReasonNotPending:
		return "only pending orders can be cancelled"
	case ReasonNotPaid:
		return "order must be paid before preparing"
	case ReasonInvalidTransition:
		return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
	}
	return "order state conflict: " + string(e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	if target == ErrConflict {
		return true
	}
	t, ok := target.(*ConflictError)
	return ok && t.Reason == e.Reason
}

// InsufficientFundsError carries the amount that would have been accepted.
type InsufficientFundsError struct {
	Required decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient amount. Need $%s", e.Required.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

func conflict(reason ConflictReason, from, to entities.OrderStatus) error {
	return &ConflictError{Reason: reason, From: from, To: to}
}
