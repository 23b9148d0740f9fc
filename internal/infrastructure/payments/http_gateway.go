package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"restbucks/internal/usecase/interfaces"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const statusApproved = "approved"

type payRequest struct {
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
	CardLastFour string  `json:"card_last_four"`
}

type payResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// HTTPPaymentGateway calls the restbucks payment service (POST {base}/pay).
// The client has no timeout of its own; the caller's context bounds each call.
type HTTPPaymentGateway struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
}

var _ interfaces.IPaymentGateway = (*HTTPPaymentGateway)(nil)

func NewHTTPPaymentGateway(baseURL string) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer: otel.Tracer("restbucks/payments"),
	}
}

func (g *HTTPPaymentGateway) Pay(ctx context.Context, req interfaces.PaymentRequest) (interfaces.PaymentResponse, error) {
	url := g.baseURL + "/pay"
	ctx, span := g.tracer.Start(ctx, "payment-service.pay",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.url", url),
			attribute.String("http.method", http.MethodPost),
			attribute.String("order.id", req.OrderID),
		),
	)
	defer span.End()
	logger := zerolog.Ctx(ctx)

	body, err := json.Marshal(payRequest{
		OrderID:      req.OrderID,
		Amount:       req.Amount.InexactFloat64(),
		CardLastFour: req.CardLastFour,
	})
	if err != nil {
		return interfaces.PaymentResponse{}, errors.Wrap(err, "marshal payment request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return interfaces.PaymentResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Str("order_id", req.OrderID).Msg("[payment][gateway] request failed")
		return interfaces.PaymentResponse{}, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		logger.Info().Str("order_id", req.OrderID).Msg("[payment][gateway] payment declined")
		return interfaces.PaymentResponse{Approved: false, Status: "declined"}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("payment service returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		span.SetStatus(codes.Error, err.Error())
		return interfaces.PaymentResponse{}, err
	}

	var out payResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		span.RecordError(err)
		return interfaces.PaymentResponse{}, errors.Wrap(err, "decode payment response")
	}
	approved := strings.EqualFold(out.Status, statusApproved) && out.TransactionID != ""
	logger.Info().Str("order_id", req.OrderID).Str("status", out.Status).Str("transaction_id", out.TransactionID).Msg("[payment][gateway] pay done")
	return interfaces.PaymentResponse{Approved: approved, Status: out.Status, TransactionID: out.TransactionID}, nil
}
