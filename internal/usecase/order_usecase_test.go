package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restbucks/internal/adapter/persistence/repository"
	"restbucks/internal/domain/entities"
	"restbucks/internal/domain/workflow"
	"restbucks/internal/resilience"
	"restbucks/internal/usecase/interfaces"
	mock_interfaces "restbucks/internal/usecase/interfaces/mocks"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
)

var testNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func approved(context.Context, interfaces.PaymentRequest) (interfaces.PaymentResponse, error) {
	return interfaces.PaymentResponse{Approved: true, Status: "approved", TransactionID: "TXN-1"}, nil
}

func newTestUseCase(gateway interfaces.IPaymentGateway, repo interfaces.IOrderRepository, opts ...OrderUseCaseOption) *OrderUseCase {
	orchestrator := NewPaymentOrchestrator(gateway, resilience.NewBulkhead("payment", 3), nil, time.Second)
	opts = append([]OrderUseCaseOption{WithClock(testClock)}, opts...)
	return NewOrderUseCase(repo, nil, orchestrator, nil, nil, opts...)
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOrderUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults and cost", func(t *testing.T) {
		uc := newTestUseCase(nil, repository.NewOrderMemoryRepository(), WithIDGenerator(func() string { return "o-1" }))
		o, err := uc.Create(ctx, CreateOrderCommand{Drink: " latte ", Shots: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.ID != "o-1" || o.Drink != "latte" || o.Size != entities.OrderSizeMedium || o.Milk != "whole" {
			t.Fatalf("unexpected order: %+v", o)
		}
		if !o.Cost.Equal(money("3.00")) || o.Status != entities.OrderStatusPending || o.Paid || o.Version != 1 {
			t.Fatalf("unexpected order: %+v", o)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		uc := newTestUseCase(nil, repository.NewOrderMemoryRepository())
		cases := []CreateOrderCommand{
			{Drink: "", Shots: 1},
			{Drink: "latte", Size: "venti", Shots: 1},
			{Drink: "latte", Shots: 0},
		}
		for _, c := range cases {
			if _, err := uc.Create(ctx, c); !errors.Is(err, workflow.ErrInvalidOrder) {
				t.Fatalf("%+v: expected ErrInvalidOrder, got %v", c, err)
			}
		}
	})

	t.Run("publishes and caches", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		cache := mock_interfaces.NewMockIOrderCache(ctrl)
		pub := mock_interfaces.NewMockIOrderEventPublisher(ctrl)
		uc := NewOrderUseCase(repository.NewOrderMemoryRepository(), cache, nil, pub, nil, WithCacheTTL(time.Minute))

		cache.EXPECT().Set(gomock.Any(), gomock.Any(), time.Minute).Return(nil)
		pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev entities.OrderEvent) error {
			if ev.Type != entities.OrderEventCreated {
				t.Fatalf("unexpected event %s", ev.Type)
			}
			return errors.New("broker down")
		})

		if _, err := uc.Create(ctx, CreateOrderCommand{Drink: "mocha", Shots: 2}); err != nil {
			t.Fatalf("publish failure must not fail create: %v", err)
		}
	})
}

func TestOrderUseCase_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		uc := newTestUseCase(nil, repository.NewOrderMemoryRepository())
		if _, err := uc.Get(ctx, "missing"); !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
		if _, err := uc.Get(ctx, " "); !errors.Is(err, ErrInvalidOrderID) {
			t.Fatalf("expected ErrInvalidOrderID, got %v", err)
		}
	})

	t.Run("cache hit skips store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIOrderRepository(ctrl)
		cache := mock_interfaces.NewMockIOrderCache(ctrl)
		uc := NewOrderUseCase(repo, cache, nil, nil, nil)

		cache.EXPECT().Get(gomock.Any(), "o-1").Return(entities.Order{ID: "o-1"}, true, nil)

		o, err := uc.Get(ctx, "o-1")
		if err != nil || o.ID != "o-1" {
			t.Fatalf("unexpected result %+v err=%v", o, err)
		}
	})

	t.Run("cache error falls back to store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIOrderRepository(ctrl)
		cache := mock_interfaces.NewMockIOrderCache(ctrl)
		uc := NewOrderUseCase(repo, cache, nil, nil, nil)

		cache.EXPECT().Get(gomock.Any(), "o-1").Return(entities.Order{}, false, errors.New("redis down"))
		repo.EXPECT().GetByID(gomock.Any(), "o-1").Return(entities.Order{ID: "o-1", Drink: "latte"}, nil)
		cache.EXPECT().Set(gomock.Any(), gomock.Any(), defaultCacheTTL).Return(errors.New("redis down"))

		o, err := uc.Get(ctx, "o-1")
		if err != nil || o.Drink != "latte" {
			t.Fatalf("unexpected result %+v err=%v", o, err)
		}
	})

	t.Run("store error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIOrderRepository(ctrl)
		uc := NewOrderUseCase(repo, nil, nil, nil, nil)

		repo.EXPECT().GetByID(gomock.Any(), "o-1").Return(entities.Order{}, errors.New("timeout"))

		if _, err := uc.Get(ctx, "o-1"); !errors.Is(err, ErrDependencyUnavailable) {
			t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
		}
	})
}

func TestOrderUseCase_List(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCase(nil, repository.NewOrderMemoryRepository())
	if _, err := uc.Create(ctx, CreateOrderCommand{Drink: "latte", Shots: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	bad := entities.OrderStatus("brewing")
	if _, err := uc.List(ctx, entities.OrderFilter{Status: &bad}); !errors.Is(err, workflow.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	pending := entities.OrderStatusPending
	got, err := uc.List(ctx, entities.OrderFilter{Status: &pending})
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected list %+v err=%v", got, err)
	}
}

func TestOrderUseCase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
	uc := newTestUseCase(gateway, repository.NewOrderMemoryRepository())

	o, err := uc.Create(ctx, CreateOrderCommand{Drink: "latte", Size: entities.OrderSizeLarge, Shots: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !o.Cost.Equal(money("4.00")) {
		t.Fatalf("expected 4.00, got %s", o.Cost)
	}

	if _, err := uc.AdvanceStatus(ctx, o.ID, entities.OrderStatusPreparing); !errors.Is(err, workflow.ErrNotPaid) {
		t.Fatalf("expected NotPaid, got %v", err)
	}

	if _, err := uc.Pay(ctx, o.ID, PayCommand{Amount: money("3.50"), CardNumber: "4111111111111111"}); !errors.Is(err, workflow.ErrInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}

	gateway.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(approved).Times(1)

	res, err := uc.Pay(ctx, o.ID, PayCommand{Amount: money("4.00"), CardNumber: "4111111111111111"})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if res.AlreadyPaid || !res.Order.Paid || res.Order.CardLastFour != "1111" || res.Order.PaymentTransactionID != "TXN-1" {
		t.Fatalf("unexpected pay result: %+v", res)
	}

	again, err := uc.Pay(ctx, o.ID, PayCommand{Amount: money("4.00"), CardNumber: "4111111111111111"})
	if err != nil || !again.AlreadyPaid {
		t.Fatalf("expected already-paid result, got %+v err=%v", again, err)
	}

	if _, err := uc.Edit(ctx, o.ID, entities.OrderPatch{}); !errors.Is(err, workflow.ErrAlreadyPaid) {
		t.Fatalf("expected AlreadyPaid on edit, got %v", err)
	}

	prepared, err := uc.AdvanceStatus(ctx, o.ID, entities.OrderStatusPreparing)
	if err != nil || prepared.Status != entities.OrderStatusPreparing {
		t.Fatalf("advance: %+v err=%v", prepared, err)
	}

	if err := uc.Cancel(ctx, o.ID); !errors.Is(err, workflow.ErrNotPending) {
		t.Fatalf("expected NotPending, got %v", err)
	}
	if _, err := uc.Edit(ctx, o.ID, entities.OrderPatch{}); !errors.Is(err, workflow.ErrAlreadyPreparing) {
		t.Fatalf("expected AlreadyPreparing, got %v", err)
	}
}

func TestOrderUseCase_EditAndCancel(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := repository.NewOrderMemoryRepository()
	cache := mock_interfaces.NewMockIOrderCache(ctrl)
	pub := mock_interfaces.NewMockIOrderEventPublisher(ctrl)
	uc := NewOrderUseCase(repo, cache, nil, pub, nil)

	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	var events []entities.OrderEventType
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev entities.OrderEvent) error {
		events = append(events, ev.Type)
		return nil
	}).Times(3)

	o, err := uc.Create(ctx, CreateOrderCommand{Drink: "latte", Shots: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	shots := 3
	edited, err := uc.Edit(ctx, o.ID, entities.OrderPatch{Shots: &shots})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Cost.Equal(money("4.00")) || edited.Version != 2 {
		t.Fatalf("unexpected edit result: %+v", edited)
	}

	cache.EXPECT().Invalidate(gomock.Any(), o.ID).Return(nil)
	if err := uc.Cancel(ctx, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if stored, _ := repo.GetByID(ctx, o.ID); stored.ID != "" {
		t.Fatalf("expected order removed")
	}
	want := []entities.OrderEventType{entities.OrderEventCreated, entities.OrderEventUpdated, entities.OrderEventCancelled}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("unexpected events %v", events)
		}
	}
	if err := uc.Cancel(ctx, o.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderUseCase_ConcurrentPayChargesOnce(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
	uc := newTestUseCase(gateway, repository.NewOrderMemoryRepository())

	o, err := uc.Create(ctx, CreateOrderCommand{Drink: "latte", Shots: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gateway.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(approved).Times(1)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		fresh, seen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := uc.Pay(ctx, o.ID, PayCommand{Amount: money("3.00"), CardNumber: "4111111111111111"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				t.Errorf("pay: %v", err)
				return
			}
			if res.AlreadyPaid {
				seen++
			} else {
				fresh++
			}
		}()
	}
	wg.Wait()
	if fresh != 1 || seen != 7 {
		t.Fatalf("expected 1 charge and 7 already-paid, got %d/%d", fresh, seen)
	}
	if uc.locks.size() != 0 {
		t.Fatalf("order locks leaked")
	}
}

func TestOrderUseCase_StoreBreaker(t *testing.T) {
	ctx := context.Background()
	pending := entities.Order{ID: "o-1", Drink: "latte", Size: entities.OrderSizeMedium, Milk: "whole", Shots: 1, Cost: money("3.00"), Status: entities.OrderStatusPending, Version: 1}

	t.Run("opens after write failures and fails fast", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIOrderRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		cb := resilience.NewCircuitBreaker("store", resilience.CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute},
			resilience.WithFailurePredicate(IsStoreFailure))
		orchestrator := NewPaymentOrchestrator(gateway, resilience.NewBulkhead("payment", 1), nil, time.Second)
		uc := NewOrderUseCase(repo, nil, orchestrator, nil, cb)

		repo.EXPECT().GetByID(gomock.Any(), "o-1").Return(pending, nil).AnyTimes()
		repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(entities.Order{}, errors.New("throttled")).Times(2)

		shots := 2
		for i := 0; i < 2; i++ {
			if _, err := uc.Edit(ctx, "o-1", entities.OrderPatch{Shots: &shots}); !errors.Is(err, ErrDependencyUnavailable) {
				t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
			}
		}
		if cb.State() != resilience.StateOpen {
			t.Fatalf("expected open breaker, got %s", cb.State())
		}
		if _, err := uc.Edit(ctx, "o-1", entities.OrderPatch{Shots: &shots}); !errors.Is(err, ErrDependencyUnavailable) {
			t.Fatalf("expected fail fast, got %v", err)
		}
		_, err := uc.Pay(ctx, "o-1", PayCommand{Amount: money("3.00"), CardNumber: "4111111111111111"})
		if !errors.Is(err, ErrDependencyUnavailable) {
			t.Fatalf("expected payment refused while store is down, got %v", err)
		}
	})

	t.Run("version conflict is not a store failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIOrderRepository(ctrl)
		cb := resilience.NewCircuitBreaker("store", resilience.CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute},
			resilience.WithFailurePredicate(IsStoreFailure))
		uc := NewOrderUseCase(repo, nil, nil, nil, cb)

		repo.EXPECT().GetByID(gomock.Any(), "o-1").Return(pending, nil)
		repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(entities.Order{}, interfaces.ErrOrderVersionConflict)

		milk := "oat"
		if _, err := uc.Edit(ctx, "o-1", entities.OrderPatch{Milk: &milk}); !errors.Is(err, ErrConcurrentModification) {
			t.Fatalf("expected ErrConcurrentModification, got %v", err)
		}
		if cb.State() != resilience.StateClosed {
			t.Fatalf("breaker must stay closed")
		}
	})

	t.Run("persist failure after charge", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIOrderRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		orchestrator := NewPaymentOrchestrator(gateway, resilience.NewBulkhead("payment", 1), nil, time.Second)
		uc := NewOrderUseCase(repo, nil, orchestrator, nil, nil)

		repo.EXPECT().GetByID(gomock.Any(), "o-1").Return(pending, nil)
		gateway.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(approved)
		repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(entities.Order{}, errors.New("write failed"))

		_, err := uc.Pay(ctx, "o-1", PayCommand{Amount: money("3.00"), CardNumber: "4111111111111111"})
		if !errors.Is(err, ErrDependencyUnavailable) {
			t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
		}
	})
}

func TestOrderUseCase_Health(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy", func(t *testing.T) {
		uc := newTestUseCase(nil, repository.NewOrderMemoryRepository())
		r := uc.Health(ctx)
		if r.Status != HealthStatusHealthy || r.Cache.Status != "disabled" || r.PaymentSlots != 3 {
			t.Fatalf("unexpected report: %+v", r)
		}
	})

	t.Run("cache down degrades", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		cache := mock_interfaces.NewMockIOrderCache(ctrl)
		uc := NewOrderUseCase(repository.NewOrderMemoryRepository(), cache, nil, nil, nil)
		cache.EXPECT().Ping(gomock.Any()).Return(errors.New("refused"))

		if r := uc.Health(ctx); r.Status != HealthStatusDegraded || r.Cache.Error != "refused" {
			t.Fatalf("unexpected report: %+v", r)
		}
	})

	t.Run("store down is unhealthy", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIOrderRepository(ctrl)
		uc := NewOrderUseCase(repo, nil, nil, nil, nil)
		repo.EXPECT().Ping(gomock.Any()).Return(errors.New("no route"))

		if r := uc.Health(ctx); r.Status != HealthStatusUnhealthy {
			t.Fatalf("unexpected report: %+v", r)
		}
	})
}
