package response

import (
	"time"

	"restbucks/internal/domain/entities"
	"restbucks/internal/domain/workflow"
)

type Link struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Method string `json:"method"`
}

type OrderResponse struct {
	ID                   string     `json:"id"`
	Drink                string     `json:"drink"`
	Size                 string     `json:"size"`
	Milk                 string     `json:"milk"`
	Shots                int        `json:"shots"`
	Cost                 float64    `json:"cost"`
	Status               string     `json:"status"`
	Paid                 bool       `json:"paid"`
	CardLastFour         string     `json:"card_last_four,omitempty"`
	PaymentTransactionID string     `json:"payment_transaction_id,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	Version              int64      `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Links                []Link     `json:"links"`
}

type CancelResponse struct {
	Message string `json:"message"`
	Links   []Link `json:"links"`
}

// FromOrder renders an order with the links its current state allows.
// baseURL is the API root, e.g. http://host/v1.
func FromOrder(o entities.Order, baseURL string) OrderResponse {
	return OrderResponse{
		ID:                   o.ID,
		Drink:                o.Drink,
		Size:                 string(o.Size),
		Milk:                 o.Milk,
		Shots:                o.Shots,
		Cost:                 o.Cost.Round(2).InexactFloat64(),
		Status:               string(o.Status),
		Paid:                 o.Paid,
		CardLastFour:         o.CardLastFour,
		PaymentTransactionID: o.PaymentTransactionID,
		PaidAt:               o.PaidAt,
		Version:              o.Version,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		Links:                OrderLinks(o, baseURL),
	}
}

func FromOrders(orders []entities.Order, baseURL string) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o, baseURL))
	}
	return out
}

func OrderLinks(o entities.Order, baseURL string) []Link {
	orderURL := baseURL + "/orders/" + o.ID
	links := []Link{{Rel: "self", Href: orderURL, Method: "GET"}}
	for _, t := range workflow.AvailableTransitions(o) {
		switch t {
		case workflow.TransitionUpdate:
			links = append(links, Link{Rel: string(t), Href: orderURL, Method: "PUT"})
		case workflow.TransitionPayment:
			links = append(links, Link{Rel: string(t), Href: orderURL + "/payment", Method: "PUT"})
		case workflow.TransitionCancel:
			links = append(links, Link{Rel: string(t), Href: orderURL, Method: "DELETE"})
		case workflow.TransitionPrepare:
			links = append(links, statusLink(t, orderURL, entities.OrderStatusPreparing))
		case workflow.TransitionReady:
			links = append(links, statusLink(t, orderURL, entities.OrderStatusReady))
		case workflow.TransitionDeliver:
			links = append(links, statusLink(t, orderURL, entities.OrderStatusDelivered))
		}
	}
	return links
}

func statusLink(t workflow.Transition, orderURL string, target entities.OrderStatus) Link {
	return Link{Rel: string(t), Href: orderURL + "/status?status=" + string(target), Method: "PUT"}
}

func FromCancel(baseURL string) CancelResponse {
	return CancelResponse{
		Message: "Order cancelled",
		Links:   []Link{{Rel: "create_order", Href: baseURL + "/orders", Method: "POST"}},
	}
}
