package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"restbucks/internal/domain/entities"

	"github.com/shopspring/decimal"
)

// Action is one of Edit, Pay, AdvanceStatus or Cancel.
type Action interface {
	action()
}

type Edit struct {
	Patch entities.OrderPatch
}

type Pay struct {
	Amount     decimal.Decimal
	CardNumber string
}

type AdvanceStatus struct {
	Target entities.OrderStatus
}

type Cancel struct{}

func (Edit) action()          {}
func (Pay) action()           {}
func (AdvanceStatus) action() {}
func (Cancel) action()        {}

// ChargeFunc takes money for an order. It is only invoked by a legal Pay.
type ChargeFunc func(ctx context.Context, order entities.Order, cardLastFour string) (entities.PaymentReceipt, error)

// Env carries the side effects a transition may need.
type Env struct {
	Charge ChargeFunc
	Now    func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Result is the outcome of a legal transition. Order is a fresh value.
type Result struct {
	Order       entities.Order
	Removed     bool
	AlreadyPaid bool
	Receipt     *entities.PaymentReceipt
	Event       entities.OrderEventType
}

// Attempt applies action to order. Rejections leave order untouched and never
// reach the charger.
func Attempt(ctx context.Context, order entities.Order, action Action, env Env) (Result, error) {
	switch a := action.(type) {
	case Edit:
		return edit(order, a, env)
	case Pay:
		return pay(ctx, order, a, env)
	case AdvanceStatus:
		return advance(order, a, env)
	case Cancel:
		return cancel(order)
	}
	return Result{}, fmt.Errorf("unknown action %T", action)
}

func edit(order entities.Order, a Edit, env Env) (Result, error) {
	if order.Status != entities.OrderStatusPending {
		return Result{}, conflict(ReasonAlreadyPreparing, order.Status, order.Status)
	}
	if order.Paid {
		return Result{}, conflict(ReasonAlreadyPaid, order.Status, order.Status)
	}

	next := order
	p := a.Patch
	if p.Drink != nil {
		next.Drink = strings.TrimSpace(*p.Drink)
	}
	if p.Size != nil {
		next.Size = *p.Size
	}
	if p.Milk != nil {
		next.Milk = strings.TrimSpace(*p.Milk)
	}
	if p.Shots != nil {
		next.Shots = *p.Shots
	}
	if err := Validate(next); err != nil {
		return Result{}, err
	}
	next.RecalculateCost()
	next.UpdatedAt = env.now()
	return Result{Order: next, Event: entities.OrderEventUpdated}, nil
}

func pay(ctx context.Context, order entities.Order, a Pay, env Env) (Result, error) {
	if order.Paid {
		return Result{Order: order, AlreadyPaid: true}, nil
	}
	if a.Amount.LessThan(order.Cost) {
		return Result{}, &InsufficientFundsError{Required: order.Cost}
	}
	lastFour, err := CardLastFour(a.CardNumber)
	if err != nil {
		return Result{}, err
	}
	if env.Charge == nil {
		return Result{}, ErrChargerMissing
	}

	receipt, err := env.Charge(ctx, order, lastFour)
	if err != nil {
		return Result{}, err
	}

	next := order
	now := env.now()
	next.Paid = true
	next.CardLastFour = lastFour
	next.PaymentTransactionID = receipt.TransactionID
	next.PaidAt = &now
	next.UpdatedAt = now
	return Result{Order: next, Receipt: &receipt, Event: entities.OrderEventPaid}, nil
}

func advance(order entities.Order, a AdvanceStatus, env Env) (Result, error) {
	if !a.Target.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidStatus, a.Target)
	}
	if a.Target == entities.OrderStatusPreparing && !order.Paid {
		return Result{}, conflict(ReasonNotPaid, order.Status, a.Target)
	}
	successor, ok := order.Status.Next()
	if !ok || successor != a.Target {
		return Result{}, conflict(ReasonInvalidTransition, order.Status, a.Target)
	}

	next := order
	next.Status = a.Target
	next.UpdatedAt = env.now()
	return Result{Order: next, Event: entities.OrderEventStatusChanged}, nil
}

func cancel(order entities.Order) (Result, error) {
	if order.Status != entities.OrderStatusPending {
		return Result{}, conflict(ReasonNotPending, order.Status, order.Status)
	}
	if order.Paid {
		return Result{}, conflict(ReasonAlreadyPaid, order.Status, order.Status)
	}
	return Result{Order: order, Removed: true, Event: entities.OrderEventCancelled}, nil
}

// Validate checks the customer-editable attributes of an order.
func Validate(o entities.Order) error {
	if strings.TrimSpace(o.Drink) == "" {
		return fmt.Errorf("%w: drink is required", ErrInvalidOrder)
	}
	if !o.Size.IsValid() {
		return fmt.Errorf("%w: unknown size %q", ErrInvalidOrder, o.Size)
	}
	if o.Shots < 1 {
		return fmt.Errorf("%w: shots must be at least 1", ErrInvalidOrder)
	}
	return nil
}

// CardLastFour strips spaces and dashes and returns the final four digits.
func CardLastFour(cardNumber string) (string, error) {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(cardNumber))
	if len(digits) < 4 {
		return "", ErrInvalidCard
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", ErrInvalidCard
		}
	}
	return digits[len(digits)-4:], nil
}
