package routes

import (
	"context"
	"fmt"

	"restbucks/internal/adapter/cache"
	"restbucks/internal/adapter/messaging"
	"restbucks/internal/adapter/persistence/repository"
	"restbucks/internal/config"
	"restbucks/internal/infrastructure/database"
	"restbucks/internal/infrastructure/payments"
	"restbucks/internal/resilience"
	"restbucks/internal/usecase"
	"restbucks/internal/usecase/interfaces"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// Dependencies holds everything the HTTP layer is built from. Close releases
// the external clients in reverse order of creation.
type Dependencies struct {
	Orders   *usecase.OrderUseCase
	Hub      *messaging.OrderEventHub
	Limiter  *resilience.RateLimiter
	Registry *prometheus.Registry

	closers []func()
}

func (d *Dependencies) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// BuildDependencies connects the configured store, cache, gateway and event
// sinks and assembles the order service around them.
func BuildDependencies(ctx context.Context, cfg config.Config) (*Dependencies, error) {
	deps := &Dependencies{Registry: prometheus.NewRegistry()}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := resilience.NewMetrics(deps.Registry)

	repo, err := buildStore(ctx, cfg.Store, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}

	orderCache, err := buildCache(cfg.Cache, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}

	gateway := buildGateway(cfg.Payment)

	var paymentBreaker *resilience.CircuitBreaker
	if cfg.Payment.BreakerEnabled {
		paymentBreaker = resilience.NewCircuitBreaker("payment", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.PaymentBreaker.FailureThreshold,
			RecoveryTimeout:  cfg.PaymentBreaker.RecoveryTimeout,
		}, resilience.WithMetrics(metrics))
	}
	bulkhead := resilience.NewBulkhead("payment", cfg.Payment.BulkheadCapacity, resilience.WithMetrics(metrics))
	orchestrator := usecase.NewPaymentOrchestrator(gateway, bulkhead, paymentBreaker, cfg.Payment.Timeout)

	storeBreaker := resilience.NewCircuitBreaker("store", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.StoreBreaker.FailureThreshold,
		RecoveryTimeout:  cfg.StoreBreaker.RecoveryTimeout,
	}, resilience.WithMetrics(metrics), resilience.WithFailurePredicate(usecase.IsStoreFailure))

	deps.Hub = messaging.NewOrderEventHub()
	publisher := buildPublisher(cfg.Kafka, deps)

	deps.Orders = usecase.NewOrderUseCase(repo, orderCache, orchestrator, publisher, storeBreaker,
		usecase.WithCacheTTL(cfg.Cache.TTL))

	deps.Limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
	}, resilience.WithMetrics(metrics))

	return deps, nil
}

func buildStore(ctx context.Context, cfg config.StoreConfig, deps *Dependencies) (interfaces.IOrderRepository, error) {
	switch cfg.Driver {
	case config.StoreDriverDynamoDB:
		ddb, err := database.ConnectDynamoDB(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "connect dynamodb")
		}
		log.Info().Str("table", cfg.OrdersTable).Msg("[store] using dynamodb")
		return repository.NewOrderDynamoRepository(ddb, cfg.OrdersTable), nil

	case config.StoreDriverMySQL:
		db, err := database.ConnectMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			deps.onClose(func() { _ = sqlDB.Close() })
		}
		repo := repository.NewOrderGormRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, errors.Wrap(err, "migrate orders table")
		}
		log.Info().Msg("[store] using mysql")
		return repo, nil

	case config.StoreDriverPostgres:
		pool, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps.onClose(pool.Close)
		repo := repository.NewOrderPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, errors.Wrap(err, "ensure orders schema")
		}
		log.Info().Msg("[store] using postgres")
		return repo, nil

	case config.StoreDriverMemory:
		log.Warn().Msg("[store] using in-memory store, orders are lost on restart")
		return repository.NewOrderMemoryRepository(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// buildCache returns a nil cache when no Redis URL is configured.
func buildCache(cfg config.CacheConfig, deps *Dependencies) (interfaces.IOrderCache, error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("[cache] REDIS_URL not set, order cache disabled")
		return nil, nil
	}
	client, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	deps.onClose(func() { _ = client.Close() })
	return cache.NewOrderRedisCache(client), nil
}

// buildGateway never fails startup: without a gateway every charge reports
// the payment service as unavailable.
func buildGateway(cfg config.PaymentConfig) interfaces.IPaymentGateway {
	switch cfg.Gateway {
	case config.PaymentGatewayMercadoPago:
		gw, err := payments.NewMercadoPagoGateway(cfg.MercadoPagoAccessToken, cfg.Mock)
		if err != nil {
			log.Error().Err(err).Msg("[payment][gateway] mercado pago gateway not configured")
			return nil
		}
		return gw
	default:
		log.Info().Str("url", cfg.ServiceURL).Msg("[payment][gateway] using http payment service")
		return payments.NewHTTPPaymentGateway(cfg.ServiceURL)
	}
}

func buildPublisher(cfg config.KafkaConfig, deps *Dependencies) interfaces.IOrderEventPublisher {
	if len(cfg.Brokers) == 0 {
		return deps.Hub
	}
	writer := messaging.NewKafkaWriter(cfg.Brokers, cfg.Topic)
	deps.onClose(func() { _ = writer.Close() })
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("[order][events] publishing to kafka")
	return messaging.NewFanoutPublisher(deps.Hub, messaging.NewOrderKafkaPublisher(writer, cfg.Topic))
}
