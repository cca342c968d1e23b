// Package config reads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Event backends.
const (
	EventsNone   = "none"
	EventsPubSub = "pubsub"
	EventsKafka  = "kafka"
)

// Config holds the API server configuration.
type Config struct {
	Port       string
	Env        string
	RequireTLS bool

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64

	Gemini     GeminiConfig
	Directions DirectionsConfig
	Redis      RedisConfig
	Events     EventsConfig

	CORSAllowedOrigins       []string
	SuggestionMaxConcurrency int
}

// GeminiConfig configures the route generator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// DirectionsConfig configures the Google Directions client and its cache.
type DirectionsConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// RedisConfig configures the optional directions cache. An empty Addr selects the in-memory cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EventsConfig configures where route.selected events go.
type EventsConfig struct {
	Backend         string
	PubSubProjectID string
	PubSubTopic     string
	KafkaBrokers    []string
	KafkaTopic      string
}

// LoadDotEnv loads .env and then .env.local from dir, if present.
// Values from .env.local override .env; missing files are ignored.
func LoadDotEnv(dir string) {
	_ = godotenv.Load(dir + "/.env")
	_ = godotenv.Overload(dir + "/.env.local")
}

// FromEnv creates a Config from environment variables.
func FromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		Port:            getEnvOrDefault("APP_PORT", "8080"),
		Env:             getEnvOrDefault("APP_ENV", "development"),
		RequireTLS:      os.Getenv("REQUIRE_TLS") == "true",
		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: floatEnv("OTEL_TRACES_SAMPLER_RATIO", 1, &errs),
		Gemini: GeminiConfig{
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL: os.Getenv("GEMINI_BASE_URL"),
			Timeout: durationEnv("GEMINI_TIMEOUT", 30*time.Second, &errs),
		},
		Directions: DirectionsConfig{
			APIKey:   os.Getenv("GOOGLE_MAPS_API_KEY"),
			BaseURL:  os.Getenv("GOOGLE_MAPS_BASE_URL"),
			Timeout:  durationEnv("DIRECTIONS_TIMEOUT", 10*time.Second, &errs),
			CacheTTL: durationEnv("DIRECTIONS_CACHE_TTL", 5*time.Minute, &errs),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intEnv("REDIS_DB", 0, &errs),
		},
		Events: EventsConfig{
			Backend:         strings.ToLower(getEnvOrDefault("EVENTS_BACKEND", EventsNone)),
			PubSubProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
			PubSubTopic:     getEnvOrDefault("PUBSUB_TOPIC", "route-events"),
			KafkaBrokers:    listEnv("KAFKA_BROKERS"),
			KafkaTopic:      getEnvOrDefault("KAFKA_TOPIC", "route-events"),
		},
		CORSAllowedOrigins:       listEnv("CORS_ALLOWED_ORIGINS"),
		SuggestionMaxConcurrency: intEnv("SUGGESTION_MAX_CONCURRENCY", 4, &errs),
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) validate() error {
	var errs []error
	switch c.Events.Backend {
	case EventsNone:
	case EventsPubSub:
		if c.Events.PubSubProjectID == "" {
			errs = append(errs, errors.New("PUBSUB_PROJECT_ID is required when EVENTS_BACKEND=pubsub"))
		}
	case EventsKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENTS_BACKEND must be one of none, pubsub, kafka, got %q", c.Events.Backend))
	}
	if c.SuggestionMaxConcurrency < 1 {
		errs = append(errs, errors.New("SUGGESTION_MAX_CONCURRENCY must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultValue
	}
	return d
}

func intEnv(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return defaultValue
	}
	return n
}

func floatEnv(key string, defaultValue float64, errs *[]error) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > 1 {
		*errs = append(*errs, fmt.Errorf("%s: want a ratio between 0 and 1, got %q", key, raw))
		return defaultValue
	}
	return f
}

// listEnv splits a comma-separated variable, dropping empty items.
func listEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
