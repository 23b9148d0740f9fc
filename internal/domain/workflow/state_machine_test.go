package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"restbucks/internal/domain/entities"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newOrder(size entities.OrderSize, shots int) entities.Order {
	o := entities.Order{
		ID:     "o-1",
		Drink:  "latte",
		Size:   size,
		Milk:   entities.DefaultOrderMilk,
		Shots:  shots,
		Status: entities.OrderStatusPending,
	}
	o.RecalculateCost()
	return o
}

type chargeRecorder struct {
	calls int
	err   error
}

func (c *chargeRecorder) charge(_ context.Context, o entities.Order, lastFour string) (entities.PaymentReceipt, error) {
	c.calls++
	if c.err != nil {
		return entities.PaymentReceipt{}, c.err
	}
	return entities.PaymentReceipt{TransactionID: "TXN-" + o.ID, OrderID: o.ID, Amount: o.Cost, CardLastFour: lastFour}, nil
}

func (c *chargeRecorder) env() Env {
	return Env{Charge: c.charge, Now: func() time.Time { return fixedNow }}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAttempt_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("applies only provided fields and recomputes cost", func(t *testing.T) {
		o := newOrder(entities.OrderSizeMedium, 1)
		size := entities.OrderSizeLarge
		shots := 3
		res, err := Attempt(ctx, o, Edit{Patch: entities.OrderPatch{Size: &size, Shots: &shots}}, Env{Now: func() time.Time { return fixedNow }})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Order.Drink != "latte" || res.Order.Milk != "whole" {
			t.Fatalf("untouched fields changed: %+v", res.Order)
		}
		if !res.Order.Cost.Equal(dec("4.50")) {
			t.Fatalf("expected 4.50, got %s", res.Order.Cost)
		}
		if o.Size != entities.OrderSizeMedium {
			t.Fatalf("input order mutated")
		}
		if res.Event != entities.OrderEventUpdated {
			t.Fatalf("unexpected event %s", res.Event)
		}
	})

	t.Run("after leaving pending", func(t *testing.T) {
		o := newOrder(entities.OrderSizeMedium, 1)
		o.Paid = true
		o.Status = entities.OrderStatusPreparing
		_, err := Attempt(ctx, o, Edit{}, Env{})
		if !errors.Is(err, ErrAlreadyPreparing) || !errors.Is(err, ErrConflict) {
			t.Fatalf("expected AlreadyPreparing conflict, got %v", err)
		}
	})

	t.Run("paid but pending", func(t *testing.T) {
		o := newOrder(entities.OrderSizeMedium, 1)
		o.Paid = true
		_, err := Attempt(ctx, o, Edit{}, Env{})
		if !errors.Is(err, ErrAlreadyPaid) {
			t.Fatalf("expected AlreadyPaid, got %v", err)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		o := newOrder(entities.OrderSizeMedium, 1)
		zero := 0
		bad := entities.OrderSize("huge")
		for _, p := range []entities.OrderPatch{{Shots: &zero}, {Size: &bad}} {
			if _, err := Attempt(ctx, o, Edit{Patch: p}, Env{}); !errors.Is(err, ErrInvalidOrder) {
				t.Fatalf("expected ErrInvalidOrder, got %v", err)
			}
		}
	})
}

func TestAttempt_Pay(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient amount leaves order unpaid", func(t *testing.T) {
		rec := &chargeRecorder{}
		o := newOrder(entities.OrderSizeLarge, 2)
		_, err := Attempt(ctx, o, Pay{Amount: dec("3.99"), CardNumber: "4111111111111111"}, rec.env())
		var ife *InsufficientFundsError
		if !errors.As(err, &ife) || !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("expected InsufficientFunds, got %v", err)
		}
		if !ife.Required.Equal(dec("4.00")) {
			t.Fatalf("expected required 4.00, got %s", ife.Required)
		}
		if err.Error() != "Insufficient amount. Need $4.00" {
			t.Fatalf("unexpected message %q", err.Error())
		}
		if o.Paid || rec.calls != 0 {
			t.Fatalf("order must stay unpaid and gateway untouched")
		}
	})

	t.Run("insufficient amount is reported before the card", func(t *testing.T) {
		rec := &chargeRecorder{}
		for _, card := range []string{"", "12", "abcd"} {
			_, err := Attempt(ctx, newOrder(entities.OrderSizeLarge, 2), Pay{Amount: dec("1.00"), CardNumber: card}, rec.env())
			if !errors.Is(err, ErrInsufficientFunds) {
				t.Fatalf("card %q: expected InsufficientFunds, got %v", card, err)
			}
		}
		if rec.calls != 0 {
			t.Fatalf("gateway must not be called")
		}
	})

	t.Run("success records card and transaction", func(t *testing.T) {
		rec := &chargeRecorder{}
		o := newOrder(entities.OrderSizeLarge, 2)
		res, err := Attempt(ctx, o, Pay{Amount: dec("4.00"), CardNumber: "4111 1111 1111 1234"}, rec.env())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Order.Paid || res.Order.CardLastFour != "1234" || res.Order.PaymentTransactionID != "TXN-o-1" {
			t.Fatalf("unexpected order: %+v", res.Order)
		}
		if res.Order.PaidAt == nil || !res.Order.PaidAt.Equal(fixedNow) {
			t.Fatalf("expected paid_at set")
		}
		if res.Receipt == nil || rec.calls != 1 {
			t.Fatalf("expected a single charge")
		}
	})

	t.Run("already paid is idempotent", func(t *testing.T) {
		rec := &chargeRecorder{}
		o := newOrder(entities.OrderSizeLarge, 2)
		first, err := Attempt(ctx, o, Pay{Amount: dec("4.00"), CardNumber: "4111111111111111"}, rec.env())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := Attempt(ctx, first.Order, Pay{Amount: dec("1.00"), CardNumber: "0000"}, rec.env())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !second.AlreadyPaid || second.Order.CardLastFour != "1111" {
			t.Fatalf("expected unchanged already-paid order, got %+v", second)
		}
		if rec.calls != 1 {
			t.Fatalf("expected exactly one gateway call, got %d", rec.calls)
		}
	})

	t.Run("charge error propagates without mutation", func(t *testing.T) {
		boom := errors.New("gateway down")
		rec := &chargeRecorder{err: boom}
		o := newOrder(entities.OrderSizeSmall, 1)
		res, err := Attempt(ctx, o, Pay{Amount: dec("10"), CardNumber: "4111111111111111"}, rec.env())
		if !errors.Is(err, boom) {
			t.Fatalf("expected gateway error, got %v", err)
		}
		if res.Order.Paid {
			t.Fatalf("order must not be paid")
		}
	})

	t.Run("invalid card", func(t *testing.T) {
		rec := &chargeRecorder{}
		for _, card := range []string{"", "12", "abcd1234"} {
			_, err := Attempt(ctx, newOrder(entities.OrderSizeSmall, 1), Pay{Amount: dec("10"), CardNumber: card}, rec.env())
			if !errors.Is(err, ErrInvalidCard) {
				t.Fatalf("card %q: expected ErrInvalidCard, got %v", card, err)
			}
		}
		if rec.calls != 0 {
			t.Fatalf("gateway must not be called")
		}
	})
}

func TestAttempt_AdvanceStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		status  entities.OrderStatus
		paid    bool
		target  entities.OrderStatus
		wantErr error
	}{
		{"unknown target", entities.OrderStatusPending, true, "brewing", ErrInvalidStatus},
		{"preparing before payment", entities.OrderStatusPending, false, entities.OrderStatusPreparing, ErrNotPaid},
		{"skip a step", entities.OrderStatusPending, true, entities.OrderStatusReady, ErrInvalidTransition},
		{"backwards", entities.OrderStatusReady, true, entities.OrderStatusPreparing, ErrInvalidTransition},
		{"same status", entities.OrderStatusReady, true, entities.OrderStatusReady, ErrInvalidTransition},
		{"delivered is terminal", entities.OrderStatusDelivered, true, entities.OrderStatusDelivered, ErrInvalidTransition},
		{"pending to preparing", entities.OrderStatusPending, true, entities.OrderStatusPreparing, nil},
		{"preparing to ready", entities.OrderStatusPreparing, true, entities.OrderStatusReady, nil},
		{"ready to delivered", entities.OrderStatusReady, true, entities.OrderStatusDelivered, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrder(entities.OrderSizeMedium, 1)
			o.Status = tt.status
			o.Paid = tt.paid
			res, err := Attempt(ctx, o, AdvanceStatus{Target: tt.target}, Env{})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Order.Status != tt.target {
				t.Fatalf("expected %s, got %s", tt.target, res.Order.Status)
			}
		})
	}
}

func TestAttempt_Cancel(t *testing.T) {
	ctx := context.Background()

	res, err := Attempt(ctx, newOrder(entities.OrderSizeMedium, 1), Cancel{}, Env{})
	if err != nil || !res.Removed {
		t.Fatalf("expected removal, got %+v err=%v", res, err)
	}

	paid := newOrder(entities.OrderSizeMedium, 1)
	paid.Paid = true
	if _, err := Attempt(ctx, paid, Cancel{}, Env{}); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected AlreadyPaid, got %v", err)
	}

	preparing := paid
	preparing.Status = entities.OrderStatusPreparing
	if _, err := Attempt(ctx, preparing, Cancel{}, Env{}); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected NotPending, got %v", err)
	}
}

func TestAttempt_Lifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &chargeRecorder{}
	env := rec.env()

	o := newOrder(entities.OrderSizeLarge, 2)
	if !o.Cost.Equal(dec("4.00")) {
		t.Fatalf("expected 4.00, got %s", o.Cost)
	}

	if _, err := Attempt(ctx, o, AdvanceStatus{Target: entities.OrderStatusPreparing}, env); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("expected NotPaid before payment, got %v", err)
	}

	res, err := Attempt(ctx, o, Pay{Amount: dec("4.00"), CardNumber: "4111111111111111"}, env)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	res, err = Attempt(ctx, res.Order, AdvanceStatus{Target: entities.OrderStatusPreparing}, env)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := Attempt(ctx, res.Order, Cancel{}, env); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected NotPending after preparing, got %v", err)
	}
}

func TestAvailableTransitions(t *testing.T) {
	o := newOrder(entities.OrderSizeMedium, 1)
	if got := AvailableTransitions(o); len(got) != 3 || got[1] != TransitionPayment {
		t.Fatalf("unexpected transitions for unpaid pending: %v", got)
	}
	o.Paid = true
	if got := AvailableTransitions(o); len(got) != 1 || got[0] != TransitionPrepare {
		t.Fatalf("unexpected transitions for paid pending: %v", got)
	}
	o.Status = entities.OrderStatusDelivered
	if got := AvailableTransitions(o); len(got) != 0 {
		t.Fatalf("delivered must have no transitions: %v", got)
	}
}
