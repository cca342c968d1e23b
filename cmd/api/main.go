// Package main provides the entrypoint for the HazardHub API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hazardhub/hazardhub/internal/api"
	"github.com/hazardhub/hazardhub/internal/api/handler"
	"github.com/hazardhub/hazardhub/internal/api/middleware"
	"github.com/hazardhub/hazardhub/internal/config"
	"github.com/hazardhub/hazardhub/internal/database"
	"github.com/hazardhub/hazardhub/internal/directions"
	"github.com/hazardhub/hazardhub/internal/directions/googlemaps"
	"github.com/hazardhub/hazardhub/internal/events"
	"github.com/hazardhub/hazardhub/internal/genai/gemini"
	"github.com/hazardhub/hazardhub/internal/hazard"
	"github.com/hazardhub/hazardhub/internal/provider/resilience"
	"github.com/hazardhub/hazardhub/internal/route"
	"github.com/hazardhub/hazardhub/internal/suggestion"
	"github.com/hazardhub/hazardhub/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "hazardhub-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting HazardHub API")

	config.LoadDotEnv(".")
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.OTelSampleRatio).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	suggestionMetrics, err := telemetry.NewSuggestionMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize suggestion metrics")
	}

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	log.Info().
		Str("target", dbConfig.Redacted()).
		Msg("database connected")

	readiness := []handler.DependencyCheck{{Name: "postgres", Check: pool.Ping}}

	// Directions responses are cached in Redis when configured so replicas share them.
	var directionsCache directions.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close redis client")
			}
		}()
		directionsCache = directions.NewRedisCache(rdb)
		readiness = append(readiness, handler.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("directions cache using redis")
	} else {
		directionsCache = directions.NewMemoryCache(time.Minute)
		log.Info().Msg("directions cache using process memory")
	}

	registry := resilience.NewRegistry()

	if cfg.Gemini.APIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set - route suggestions will fail")
	}
	generator := gemini.NewClient(gemini.ClientConfig{
		APIKey:   cfg.Gemini.APIKey,
		Model:    cfg.Gemini.Model,
		BaseURL:  cfg.Gemini.BaseURL,
		Timeout:  cfg.Gemini.Timeout,
		Registry: registry,
		Metrics:  providerMetrics,
		Logger:   log,
	})

	if cfg.Directions.APIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY not set - suggested routes will have no geometry")
	}
	directionsService := directions.NewService(directions.ServiceConfig{
		Provider: googlemaps.NewClient(googlemaps.ClientConfig{
			APIKey:   cfg.Directions.APIKey,
			BaseURL:  cfg.Directions.BaseURL,
			Timeout:  cfg.Directions.Timeout,
			Registry: registry,
			Metrics:  providerMetrics,
			Logger:   log,
		}),
		Cache:        directionsCache,
		Logger:       log,
		Metrics:      providerMetrics,
		CacheTTL:     cfg.Directions.CacheTTL,
		FetchTimeout: 2 * cfg.Directions.Timeout,
	})

	suggestionService := suggestion.NewService(suggestion.ServiceConfig{
		Generator:      generator,
		Directions:     directionsService,
		Hazards:        hazard.NewPostgresSource(pool),
		Logger:         log,
		Metrics:        suggestionMetrics,
		MaxConcurrency: cfg.SuggestionMaxConcurrency,
	})

	publisher, err := newPublisher(ctx, cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize event publisher")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	routeService := route.NewService(route.ServiceConfig{
		Repository: route.NewPostgresRepository(pool),
		Publisher:  publisher,
		Logger:     log,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		RequireTLS:         cfg.RequireTLS,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RouteService:       routeService,
		SuggestionService:  suggestionService,
		Registry:           registry,
		ReadinessChecks:    readiness,
	})

	// Suggestions wait on the model and the directions provider, so writes get more time than reads.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Gemini.Timeout + 2*cfg.Directions.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// newPublisher builds the route event publisher for the configured backend.
func newPublisher(ctx context.Context, cfg config.EventsConfig, log zerolog.Logger) (events.Publisher, error) {
	switch cfg.Backend {
	case config.EventsPubSub:
		p, err := events.NewPubSubPublisher(ctx, events.PubSubConfig{
			ProjectID: cfg.PubSubProjectID,
			Topic:     cfg.PubSubTopic,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("project", cfg.PubSubProjectID).Str("topic", cfg.PubSubTopic).Msg("publishing route events to pubsub")
		return p, nil
	case config.EventsKafka:
		p, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing route events to kafka")
		return p, nil
	default:
		return events.NopPublisher{}, nil
	}
}
