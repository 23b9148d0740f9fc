package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restbucks/internal/domain/entities"
	"restbucks/internal/domain/workflow"
	"restbucks/internal/resilience"
	"restbucks/internal/usecase/interfaces"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const defaultCacheTTL = 300 * time.Second

type CreateOrderCommand struct {
	Drink string
	Size  entities.OrderSize
	Milk  string
	Shots int
}

type PayCommand struct {
	Amount     decimal.Decimal
	CardNumber string
}

// PaymentResult reports whether this call took the money or found the order
// already paid.
type PaymentResult struct {
	Order       entities.Order
	AlreadyPaid bool
}

type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthReport struct {
	Status         string          `json:"status"`
	Store          ComponentHealth `json:"database"`
	Cache          ComponentHealth `json:"cache"`
	StoreBreaker   string          `json:"store_breaker"`
	PaymentBreaker string          `json:"payment_breaker,omitempty"`
	PaymentInUse   int             `json:"payment_in_flight"`
	PaymentSlots   int             `json:"payment_capacity"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

//go:generate mockgen -source=order_usecase.go -destination=../adapter/http/handlers/mocks/mock_order_usecase.go -package=mocks

// IOrderUseCase is the order service: every client operation goes through it.
type IOrderUseCase interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (entities.Order, error)
	Get(ctx context.Context, id string) (entities.Order, error)
	List(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error)
	Edit(ctx context.Context, id string, patch entities.OrderPatch) (entities.Order, error)
	Pay(ctx context.Context, id string, cmd PayCommand) (PaymentResult, error)
	AdvanceStatus(ctx context.Context, id string, target entities.OrderStatus) (entities.Order, error)
	Cancel(ctx context.Context, id string) error
	Health(ctx context.Context) HealthReport
}

type OrderUseCase struct {
	repo         interfaces.IOrderRepository
	cache        interfaces.IOrderCache
	payments     IPaymentOrchestrator
	publisher    interfaces.IOrderEventPublisher
	storeBreaker *resilience.CircuitBreaker

	locks    *orderLocks
	group    singleflight.Group
	cacheTTL time.Duration
	now      func() time.Time
	newID    func() string
	tracer   trace.Tracer
}

var _ IOrderUseCase = (*OrderUseCase)(nil)

type OrderUseCaseOption func(*OrderUseCase)

func WithCacheTTL(ttl time.Duration) OrderUseCaseOption {
	return func(u *OrderUseCase) {
		if ttl > 0 {
			u.cacheTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) OrderUseCaseOption {
	return func(u *OrderUseCase) {
		if now != nil {
			u.now = now
		}
	}
}

func WithIDGenerator(newID func() string) OrderUseCaseOption {
	return func(u *OrderUseCase) {
		if newID != nil {
			u.newID = newID
		}
	}
}

// NewOrderUseCase wires the order service. cache, publisher and storeBreaker
// may be nil.
func NewOrderUseCase(
	repo interfaces.IOrderRepository,
	cache interfaces.IOrderCache,
	payments IPaymentOrchestrator,
	publisher interfaces.IOrderEventPublisher,
	storeBreaker *resilience.CircuitBreaker,
	opts ...OrderUseCaseOption,
) *OrderUseCase {
	u := &OrderUseCase{
		repo:         repo,
		cache:        cache,
		payments:     payments,
		publisher:    publisher,
		storeBreaker: storeBreaker,
		locks:        newOrderLocks(),
		cacheTTL:     defaultCacheTTL,
		now:          time.Now,
		newID:        uuid.NewString,
		tracer:       otel.Tracer("restbucks/orders"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *OrderUseCase) Create(ctx context.Context, cmd CreateOrderCommand) (entities.Order, error) {
	ctx, span := u.tracer.Start(ctx, "orders.create")
	defer span.End()
	logger := zerolog.Ctx(ctx)

	now := u.now().UTC()
	o := entities.Order{
		ID:        u.newID(),
		Drink:     strings.TrimSpace(cmd.Drink),
		Size:      cmd.Size,
		Milk:      strings.TrimSpace(cmd.Milk),
		Shots:     cmd.Shots,
		Status:    entities.OrderStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if o.Size == "" {
		o.Size = entities.DefaultOrderSize
	}
	if o.Milk == "" {
		o.Milk = entities.DefaultOrderMilk
	}
	if err := workflow.Validate(o); err != nil {
		logger.Info().Err(err).Msg("[order][usecase] create rejected")
		return entities.Order{}, err
	}
	o.RecalculateCost()

	var created entities.Order
	err := u.guardStore(ctx, func(ctx context.Context) error {
		var err error
		created, err = u.repo.Create(ctx, o)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Str("order_id", o.ID).Msg("[order][usecase] create failed")
		return entities.Order{}, err
	}

	span.SetAttributes(attribute.String("order.id", created.ID))
	logger.Info().Str("order_id", created.ID).Str("cost", created.Cost.StringFixed(2)).Msg("[order][usecase] create success")
	u.cachePut(ctx, created)
	u.publish(ctx, entities.OrderEventCreated, created)
	return created, nil
}

// Get serves from the cache when it can. Concurrent misses for the same id
// share one store read, which runs under the order lock so a refill can
// never overwrite a newer version written by a transition.
func (u *OrderUseCase) Get(ctx context.Context, id string) (entities.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return entities.Order{}, ErrInvalidOrderID
	}
	ctx, span := u.tracer.Start(ctx, "orders.get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	v, err, _ := u.group.Do(id, func() (any, error) {
		// shared by every waiter on id, so one caller's cancellation must not fail the rest
		ctx := context.WithoutCancel(ctx)
		if u.cache != nil {
			cached, ok, err := u.cache.Get(ctx, id)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", id).Msg("[order][usecase] cache read failed, falling back to store")
			} else if ok {
				return cached, nil
			}
		}

		unlock := u.locks.Lock(id)
		defer unlock()
		o, err := u.load(ctx, id)
		if err != nil {
			return entities.Order{}, err
		}
		u.cachePut(ctx, o)
		return o, nil
	})
	if err != nil {
		return entities.Order{}, err
	}
	return v.(entities.Order), nil
}

func (u *OrderUseCase) List(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidStatus, *filter.Status)
	}
	ctx, span := u.tracer.Start(ctx, "orders.list")
	defer span.End()

	orders, err := u.repo.List(ctx, filter)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("[order][usecase] list failed")
		return nil, fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
	}
	return orders, nil
}

func (u *OrderUseCase) Edit(ctx context.Context, id string, patch entities.OrderPatch) (entities.Order, error) {
	res, err := u.transition(ctx, "orders.edit", id, workflow.Edit{Patch: patch})
	if err != nil {
		return entities.Order{}, err
	}
	return res.Order, nil
}

func (u *OrderUseCase) Pay(ctx context.Context, id string, cmd PayCommand) (PaymentResult, error) {
	res, err := u.transition(ctx, "orders.pay", id, workflow.Pay{Amount: cmd.Amount, CardNumber: cmd.CardNumber})
	if err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{Order: res.Order, AlreadyPaid: res.AlreadyPaid}, nil
}

func (u *OrderUseCase) AdvanceStatus(ctx context.Context, id string, target entities.OrderStatus) (entities.Order, error) {
	res, err := u.transition(ctx, "orders.advance_status", id, workflow.AdvanceStatus{Target: target})
	if err != nil {
		return entities.Order{}, err
	}
	return res.Order, nil
}

func (u *OrderUseCase) Cancel(ctx context.Context, id string) error {
	_, err := u.transition(ctx, "orders.cancel", id, workflow.Cancel{})
	return err
}

// transition runs one state-machine step under the order's lock. The store,
// not the cache, is the source for the current state.
func (u *OrderUseCase) transition(ctx context.Context, spanName, id string, action workflow.Action) (workflow.Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return workflow.Result{}, ErrInvalidOrderID
	}
	ctx, span := u.tracer.Start(ctx, spanName, trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()
	logger := zerolog.Ctx(ctx).With().Str("order_id", id).Str("action", fmt.Sprintf("%T", action)).Logger()

	unlock := u.locks.Lock(id)
	defer unlock()

	current, err := u.load(ctx, id)
	if err != nil {
		logger.Info().Err(err).Msg("[order][usecase] load failed")
		return workflow.Result{}, err
	}

	res, err := workflow.Attempt(ctx, current, action, workflow.Env{Charge: u.charge, Now: u.now})
	if err != nil {
		if isPaymentError(err) || errors.Is(err, ErrDependencyUnavailable) {
			logger.Warn().Err(err).Msg("[order][usecase] transition failed")
		} else {
			logger.Info().Err(err).Msg("[order][usecase] transition rejected")
		}
		return workflow.Result{}, err
	}
	if res.AlreadyPaid {
		logger.Info().Msg("[order][usecase] order already paid")
		return res, nil
	}

	if res.Removed {
		err = u.guardStore(ctx, func(ctx context.Context) error {
			return u.repo.Delete(ctx, id, current.Version)
		})
		if err != nil {
			logger.Error().Err(err).Msg("[order][usecase] delete failed")
			return workflow.Result{}, err
		}
		u.cacheInvalidate(ctx, id)
		u.publish(ctx, res.Event, res.Order)
		logger.Info().Msg("[order][usecase] order cancelled")
		return res, nil
	}

	var saved entities.Order
	err = u.guardStore(ctx, func(ctx context.Context) error {
		var err error
		saved, err = u.repo.Update(ctx, res.Order)
		return err
	})
	if err != nil {
		if res.Receipt != nil {
			logger.Error().Err(err).
				Str("transaction_id", res.Receipt.TransactionID).
				Str("amount", res.Receipt.Amount.StringFixed(2)).
				Msg("[order][usecase] CRITICAL payment captured but order not persisted")
		} else {
			logger.Error().Err(err).Msg("[order][usecase] update failed")
		}
		u.cacheInvalidate(ctx, id)
		return workflow.Result{}, err
	}

	res.Order = saved
	u.cachePut(ctx, saved)
	u.publish(ctx, res.Event, saved)
	logger.Info().Str("status", string(saved.Status)).Bool("paid", saved.Paid).Int64("version", saved.Version).Msg("[order][usecase] transition success")
	return res, nil
}

// charge is handed to the state machine; it only runs for a legal payment.
// It refuses to take money while the store cannot record it.
func (u *OrderUseCase) charge(ctx context.Context, o entities.Order, cardLastFour string) (entities.PaymentReceipt, error) {
	if u.storeBreaker != nil && u.storeBreaker.IsOpen() {
		return entities.PaymentReceipt{}, fmt.Errorf("%w: store circuit open, payment not attempted", ErrDependencyUnavailable)
	}
	if u.payments == nil {
		return entities.PaymentReceipt{}, fmt.Errorf("%w: payments not configured", ErrPaymentUnavailable)
	}
	return u.payments.Charge(ctx, ChargeRequest{OrderID: o.ID, Amount: o.Cost, CardLastFour: cardLastFour})
}

func (u *OrderUseCase) load(ctx context.Context, id string) (entities.Order, error) {
	o, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return entities.Order{}, fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
	}
	if o.ID == "" {
		return entities.Order{}, ErrOrderNotFound
	}
	return o, nil
}

// guardStore runs a store write through the store breaker and maps the
// outcome onto service errors.
func (u *OrderUseCase) guardStore(ctx context.Context, fn func(context.Context) error) error {
	var err error
	if u.storeBreaker != nil {
		err = u.storeBreaker.Execute(ctx, fn)
	} else {
		err = fn(ctx)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, interfaces.ErrOrderVersionConflict):
		return ErrConcurrentModification
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fmt.Errorf("%w: store circuit open", ErrDependencyUnavailable)
	}
	return fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
}

func (u *OrderUseCase) cachePut(ctx context.Context, o entities.Order) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Set(ctx, o, u.cacheTTL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Msg("[order][usecase] cache write failed")
	}
}

func (u *OrderUseCase) cacheInvalidate(ctx context.Context, id string) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Invalidate(ctx, id); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", id).Msg("[order][usecase] cache invalidate failed")
	}
}

func (u *OrderUseCase) publish(ctx context.Context, t entities.OrderEventType, o entities.Order) {
	if u.publisher == nil || t == "" {
		return
	}
	if err := u.publisher.Publish(ctx, entities.NewOrderEvent(t, o, u.now())); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Str("event", string(t)).Msg("[order][usecase] publish failed")
	}
}

// Health reports store and cache reachability plus resilience state. A cache
// outage only degrades the service.
func (u *OrderUseCase) Health(ctx context.Context) HealthReport {
	r := HealthReport{Status: HealthStatusHealthy}

	if err := u.repo.Ping(ctx); err != nil {
		r.Store = ComponentHealth{Status: "error", Error: err.Error()}
		r.Status = HealthStatusUnhealthy
	} else {
		r.Store = ComponentHealth{Status: "ok"}
	}

	switch {
	case u.cache == nil:
		r.Cache = ComponentHealth{Status: "disabled"}
	default:
		if err := u.cache.Ping(ctx); err != nil {
			r.Cache = ComponentHealth{Status: "error", Error: err.Error()}
			if r.Status == HealthStatusHealthy {
				r.Status = HealthStatusDegraded
			}
		} else {
			r.Cache = ComponentHealth{Status: "ok"}
		}
	}

	if u.storeBreaker != nil {
		r.StoreBreaker = u.storeBreaker.State().String()
		if r.StoreBreaker != resilience.StateClosed.String() && r.Status == HealthStatusHealthy {
			r.Status = HealthStatusDegraded
		}
	}
	if u.payments != nil {
		s := u.payments.Stats()
		r.PaymentInUse = s.InFlight
		r.PaymentSlots = s.Capacity
		r.PaymentBreaker = s.BreakerState
	}
	return r
}
