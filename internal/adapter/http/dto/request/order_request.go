package request

import (
	"errors"
	"strings"

	"restbucks/internal/domain/entities"
	"restbucks/internal/usecase"

	"github.com/shopspring/decimal"
)

var ErrMissingStatus = errors.New("missing status")

type CreateOrderRequest struct {
	Drink string `json:"drink" binding:"required"`
	Size  string `json:"size"`
	Milk  string `json:"milk"`
	Shots *int   `json:"shots"`
}

// ToCommand applies the one-shot default; size and milk defaults belong to
// the use case.
func (r CreateOrderRequest) ToCommand() usecase.CreateOrderCommand {
	shots := entities.DefaultOrderShots
	if r.Shots != nil {
		shots = *r.Shots
	}
	return usecase.CreateOrderCommand{
		Drink: r.Drink,
		Size:  entities.OrderSize(strings.ToLower(strings.TrimSpace(r.Size))),
		Milk:  r.Milk,
		Shots: shots,
	}
}

// UpdateOrderRequest carries only the fields the client wants to change.
type UpdateOrderRequest struct {
	Drink *string `json:"drink"`
	Size  *string `json:"size"`
	Milk  *string `json:"milk"`
	Shots *int    `json:"shots"`
}

func (r UpdateOrderRequest) ToPatch() entities.OrderPatch {
	p := entities.OrderPatch{Drink: r.Drink, Milk: r.Milk, Shots: r.Shots}
	if r.Size != nil {
		size := entities.OrderSize(strings.ToLower(strings.TrimSpace(*r.Size)))
		p.Size = &size
	}
	return p
}

type PaymentRequest struct {
	CardNumber string          `json:"card_number" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

func (r PaymentRequest) ToCommand() usecase.PayCommand {
	return usecase.PayCommand{Amount: r.Amount, CardNumber: r.CardNumber}
}

type StatusRequest struct {
	Status string `json:"status"`
}

// ResolveStatus prefers the ?status= query value, as emitted in the
// hypermedia links, over the JSON body.
func (r StatusRequest) ResolveStatus(query string) (entities.OrderStatus, error) {
	v := strings.TrimSpace(query)
	if v == "" {
		v = strings.TrimSpace(r.Status)
	}
	if v == "" {
		return "", ErrMissingStatus
	}
	return entities.OrderStatus(strings.ToLower(v)), nil
}
