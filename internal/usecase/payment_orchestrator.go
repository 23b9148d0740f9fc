package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restbucks/internal/domain/entities"
	"restbucks/internal/resilience"
	"restbucks/internal/usecase/interfaces"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultPaymentTimeout = 3 * time.Second

type ChargeRequest struct {
	OrderID      string
	Amount       decimal.Decimal
	CardLastFour string
	// Timeout overrides the orchestrator default when positive.
	Timeout time.Duration
}

type PaymentStats struct {
	InFlight     int
	Capacity     int
	BreakerState string
}

// IPaymentOrchestrator performs a single gated gateway call.
type IPaymentOrchestrator interface {
	Charge(ctx context.Context, req ChargeRequest) (entities.PaymentReceipt, error)
	Stats() PaymentStats
}

// PaymentOrchestrator wraps the gateway with a bulkhead, an optional circuit
// breaker and a hard deadline, and translates every failure into
// ErrPaymentOverloaded, ErrPaymentUnavailable or ErrPaymentRejected.
type PaymentOrchestrator struct {
	gateway  interfaces.IPaymentGateway
	bulkhead *resilience.Bulkhead
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	tracer   trace.Tracer
	now      func() time.Time
}

var _ IPaymentOrchestrator = (*PaymentOrchestrator)(nil)

// NewPaymentOrchestrator builds an orchestrator. breaker may be nil.
func NewPaymentOrchestrator(gateway interfaces.IPaymentGateway, bulkhead *resilience.Bulkhead, breaker *resilience.CircuitBreaker, timeout time.Duration) *PaymentOrchestrator {
	if timeout <= 0 {
		timeout = defaultPaymentTimeout
	}
	return &PaymentOrchestrator{
		gateway:  gateway,
		bulkhead: bulkhead,
		breaker:  breaker,
		timeout:  timeout,
		tracer:   otel.Tracer("restbucks/payments"),
		now:      time.Now,
	}
}

func (o *PaymentOrchestrator) Charge(ctx context.Context, req ChargeRequest) (entities.PaymentReceipt, error) {
	ctx, span := o.tracer.Start(ctx, "payment.charge", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("payment.amount", req.Amount.StringFixed(2)),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx).With().Str("order_id", req.OrderID).Logger()

	if o.gateway == nil {
		logger.Error().Msg("[payment][orchestrator] gateway not configured")
		return o.fail(span, fmt.Errorf("%w: gateway not configured", ErrPaymentUnavailable))
	}

	if !o.bulkhead.TryAcquire() {
		logger.Warn().Int("capacity", o.bulkhead.Capacity()).Msg("[payment][orchestrator] bulkhead full")
		return o.fail(span, ErrPaymentOverloaded)
	}
	defer o.bulkhead.Release()

	timeout := o.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info().Dur("timeout", timeout).Msg("[payment][orchestrator] calling gateway")
	resp, err := o.call(callCtx, interfaces.PaymentRequest{
		OrderID:      req.OrderID,
		Amount:       req.Amount,
		CardLastFour: req.CardLastFour,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("[payment][orchestrator] gateway call failed")
		return o.fail(span, fmt.Errorf("%w: %w", ErrPaymentUnavailable, err))
	}
	if !resp.Approved {
		logger.Info().Str("gateway_status", resp.Status).Msg("[payment][orchestrator] payment declined")
		return o.fail(span, fmt.Errorf("%w: status %q", ErrPaymentRejected, resp.Status))
	}

	span.SetAttributes(attribute.String("payment.transaction_id", resp.TransactionID))
	logger.Info().Str("transaction_id", resp.TransactionID).Msg("[payment][orchestrator] payment approved")
	return entities.PaymentReceipt{
		TransactionID: resp.TransactionID,
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		CardLastFour:  req.CardLastFour,
		ProcessedAt:   o.now().UTC(),
	}, nil
}

func (o *PaymentOrchestrator) call(ctx context.Context, req interfaces.PaymentRequest) (interfaces.PaymentResponse, error) {
	if o.breaker == nil {
		return o.gateway.Pay(ctx, req)
	}
	var resp interfaces.PaymentResponse
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = o.gateway.Pay(ctx, req)
		return err
	})
	return resp, err
}

func (o *PaymentOrchestrator) fail(span trace.Span, err error) (entities.PaymentReceipt, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return entities.PaymentReceipt{}, err
}

func (o *PaymentOrchestrator) Stats() PaymentStats {
	s := PaymentStats{InFlight: o.bulkhead.InFlight(), Capacity: o.bulkhead.Capacity()}
	if o.breaker != nil {
		s.BreakerState = o.breaker.State().String()
	}
	return s
}

// isPaymentError reports whether err already carries one of the payment outcomes.
func isPaymentError(err error) bool {
	return errors.Is(err, ErrPaymentOverloaded) || errors.Is(err, ErrPaymentUnavailable) || errors.Is(err, ErrPaymentRejected)
}
