package main

import (
	"context"
	"time"

	_ "restbucks/docs"
	"restbucks/internal/adapter/http/routes"
	"restbucks/internal/config"
	"restbucks/internal/infrastructure/logging"
	"restbucks/internal/infrastructure/tracing"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

// @title           Restbucks API
// @version         1.0
// @description     Coffee orders with payment, preparation tracking and a resilience layer (bulkhead, circuit breakers, rate limiting).
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080

// @BasePath  /v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.Service.Name, cfg.Service.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	tp, err := tracing.InitTracerProvider(cfg.Service.Name, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("tracer shutdown failed")
		}
	}()

	if err := routes.Run(cfg); err != nil {
		log.Error().Err(err).Msg("Failed to startup the application")
	}
}
