package routes

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "restbucks/docs" // generated by swag init
	"restbucks/internal/adapter/http/handlers"
	"restbucks/internal/adapter/http/middleware"
	"restbucks/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
)

// Run starts the server and blocks until SIGINT/SIGTERM, then drains
// in-flight requests for up to the configured shutdown timeout.
func Run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := BuildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.Port),
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		deps.Limiter.Run(gctx, cfg.RateLimit.SweepInterval)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("[http] listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("[http] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// NewRouter builds the gin engine. The rate limiter covers the /v1 API only;
// health, metrics and swagger stay reachable for probes. Forwarded client
// addresses are honoured only from cfg.Service.TrustedProxies.
func NewRouter(cfg config.Config, deps *Dependencies) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Service.TrustedProxies); err != nil {
		log.Error().Err(err).Strs("trusted_proxies", cfg.Service.TrustedProxies).Msg("[http] invalid trusted proxies, ignoring forwarded headers")
		_ = router.SetTrustedProxies(nil)
	}
	setMiddlewares(router, cfg.Service.Name)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	healthHandler := handlers.NewHealthHandler(deps.Orders)
	var metrics http.Handler
	if deps.Registry != nil {
		metrics = promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})
	}
	addHealthRoutes(router, healthHandler, metrics)

	var streamHandler *handlers.StreamHandler
	if deps.Hub != nil {
		streamHandler = handlers.NewStreamHandler(deps.Hub)
	}

	v1 := router.Group(handlers.APIBasePath)
	if deps.Limiter != nil {
		v1.Use(middleware.RateLimit(deps.Limiter, time.Now))
	}
	addPingRoutes(v1, healthHandler)
	addOrderRoutes(v1, handlers.NewOrderHandler(deps.Orders), streamHandler)

	return router
}

func setMiddlewares(router *gin.Engine, serviceName string) {
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		zerolog.Ctx(c.Request.Context()).Error().Interface("panic", recovered).Msg("[http] recovered from panic")
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	router.Use(middleware.Tracing(serviceName))
	router.Use(middleware.RequestLogger())
}
