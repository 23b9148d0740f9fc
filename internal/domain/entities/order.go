package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSize is the cup size of an order.
type OrderSize string

const (
	OrderSizeSmall  OrderSize = "small"
	OrderSizeMedium OrderSize = "medium"
	OrderSizeLarge  OrderSize = "large"
)

// OrderStatus represents the preparation lifecycle of an order.
//
// Domain notes:
//   - Status only moves forward: pending -> preparing -> ready -> delivered.
//   - delivered is terminal; the record is kept for history.

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
)

const (
	DefaultOrderSize  = OrderSizeMedium
	DefaultOrderMilk  = "whole"
	DefaultOrderShots = 1
)

var (
	extraShotPrice   = decimal.RequireFromString("0.50")
	defaultBasePrice = decimal.RequireFromString("3.00")
	basePrices       = map[OrderSize]decimal.Decimal{
		OrderSizeSmall:  decimal.RequireFromString("2.50"),
		OrderSizeMedium: decimal.RequireFromString("3.00"),
		OrderSizeLarge:  decimal.RequireFromString("3.50"),
	}
	statusOrder = []OrderStatus{OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered}
)

// Order is the coffee order persisted by the order service.
//
// Storage model (DynamoDB):
//   - PK: id
//   - version is used for conditional writes (optimistic locking)
//
// Monetary representation:
//   - Cost is derived from Size and Shots and recomputed on every edit.
type Order struct {
	ID           string          `json:"id"`
	Drink        string          `json:"drink"`
	Size         OrderSize       `json:"size"`
	Milk         string          `json:"milk"`
	Shots        int             `json:"shots"`
	Cost         decimal.Decimal `json:"cost"`
	Status       OrderStatus     `json:"status"`
	Paid         bool            `json:"paid"`
	CardLastFour string          `json:"card_last_four,omitempty"`

	PaymentTransactionID string     `json:"payment_transaction_id,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderPatch is a partial edit: nil fields are left unchanged.
type OrderPatch struct {
	Drink *string
	Size  *OrderSize
	Milk  *string
	Shots *int
}

func (p OrderPatch) IsEmpty() bool {
	return p.Drink == nil && p.Size == nil && p.Milk == nil && p.Shots == nil
}

// OrderFilter narrows a listing. Nil fields match everything.
type OrderFilter struct {
	Status *OrderStatus
	Paid   *bool
}

func (f OrderFilter) Matches(o Order) bool {
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.Paid != nil && o.Paid != *f.Paid {
		return false
	}
	return true
}

// CalculateCost returns basePrice(size) + 0.50 per shot beyond the first.
// Unknown sizes price as medium so legacy records still have a cost.
func CalculateCost(size OrderSize, shots int) decimal.Decimal {
	base, ok := basePrices[size]
	if !ok {
		base = defaultBasePrice
	}
	extra := shots - 1
	if extra < 0 {
		extra = 0
	}
	return base.Add(extraShotPrice.Mul(decimal.NewFromInt(int64(extra))))
}

func (s OrderSize) IsValid() bool {
	_, ok := basePrices[s]
	return ok
}

func (s OrderStatus) IsValid() bool {
	for _, st := range statusOrder {
		if st == s {
			return true
		}
	}
	return false
}

// Next returns the immediate successor status, or false for delivered.
func (s OrderStatus) Next() (OrderStatus, bool) {
	for i, st := range statusOrder {
		if st == s && i+1 < len(statusOrder) {
			return statusOrder[i+1], true
		}
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

// RecalculateCost refreshes Cost from the current size and shots.
func (o *Order) RecalculateCost() {
	o.Cost = CalculateCost(o.Size, o.Shots)
}

func (o Order) IsEditable() bool {
	return o.Status == OrderStatusPending && !o.Paid
}
