package interfaces

import (
	"context"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=payment_gateway_interface.go -destination=mocks/mock_payment_gateway.go -package=mock_interfaces

type PaymentRequest struct {
	OrderID      string
	Amount       decimal.Decimal
	CardLastFour string
}

type PaymentResponse struct {
	Approved      bool
	Status        string
	TransactionID string
}

// IPaymentGateway abstracts external payment providers (restbucks payment
// service, Mercado Pago).
//
// Transport failures come back as errors; a declined charge is a nil error
// with Approved == false.
type IPaymentGateway interface {
	Pay(ctx context.Context, req PaymentRequest) (PaymentResponse, error)
}
