package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name  string
		size  OrderSize
		shots int
		want  string
	}{
		{"small single", OrderSizeSmall, 1, "2.50"},
		{"medium single", OrderSizeMedium, 1, "3.00"},
		{"large single", OrderSizeLarge, 1, "3.50"},
		{"large double", OrderSizeLarge, 2, "4.00"},
		{"small triple", OrderSizeSmall, 3, "3.50"},
		{"unknown size prices as medium", OrderSize("venti"), 1, "3.00"},
		{"zero shots has no discount", OrderSizeMedium, 0, "3.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCost(tt.size, tt.shots)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("expected %s, got %s", tt.want, got.StringFixed(2))
			}
		})
	}
}

func TestOrderStatus_Next(t *testing.T) {
	cases := map[OrderStatus]OrderStatus{
		OrderStatusPending:   OrderStatusPreparing,
		OrderStatusPreparing: OrderStatusReady,
		OrderStatusReady:     OrderStatusDelivered,
	}
	for from, want := range cases {
		got, ok := from.Next()
		if !ok || got != want {
			t.Fatalf("%s: expected %s, got %s (ok=%v)", from, want, got, ok)
		}
	}
	if _, ok := OrderStatusDelivered.Next(); ok {
		t.Fatalf("delivered must be terminal")
	}
	if !OrderStatusDelivered.IsTerminal() {
		t.Fatalf("expected delivered to be terminal")
	}
	if OrderStatus("brewing").IsValid() {
		t.Fatalf("unexpected valid status")
	}
}

func TestOrderFilter_Matches(t *testing.T) {
	paid := true
	preparing := OrderStatusPreparing
	o := Order{Status: OrderStatusPreparing, Paid: true}

	if !(OrderFilter{}).Matches(o) {
		t.Fatalf("empty filter should match")
	}
	if !(OrderFilter{Status: &preparing, Paid: &paid}).Matches(o) {
		t.Fatalf("expected match")
	}
	unpaid := false
	if (OrderFilter{Paid: &unpaid}).Matches(o) {
		t.Fatalf("expected no match on paid filter")
	}
}

func TestNewOrderEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	o := Order{ID: "o-1", Status: OrderStatusPending, Cost: decimal.RequireFromString("3.00")}
	ev := NewOrderEvent(OrderEventCreated, o, at)
	if ev.OrderID != "o-1" || ev.Type != OrderEventCreated || ev.OccurredAt.Location() != time.UTC {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
