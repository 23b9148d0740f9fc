package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentReceipt is what a successful gateway charge hands back.
type PaymentReceipt struct {
	TransactionID string          `json:"transaction_id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	CardLastFour  string          `json:"card_last_four"`
	ProcessedAt   time.Time       `json:"processed_at"`
}
