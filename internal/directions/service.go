package directions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hazardhub/hazardhub/internal/telemetry"
)

// ServiceConfig holds configuration for the directions service.
type ServiceConfig struct {
	// Provider is the directions data provider.
	Provider Provider

	// Cache stores provider responses (default: in-process MemoryCache).
	Cache Cache

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records cache hits and misses (optional).
	Metrics *telemetry.ProviderMetrics

	// CacheTTL is how long a response is served without asking the provider (default: 5 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// FetchTimeout bounds a provider call shared by concurrent callers (default: 30 seconds).
	FetchTimeout time.Duration
}

// Service wraps a Provider with response caching and stale-if-error fallback.
// It satisfies Provider itself, so callers do not know whether they are cached.
type Service struct {
	provider        Provider
	cache           Cache
	logger          zerolog.Logger
	metrics         *telemetry.ProviderMetrics
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	fetchTimeout    time.Duration

	group singleflight.Group
}

// NewService creates a new directions service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}
	if staleIfErrorTTL < cacheTTL {
		staleIfErrorTTL = cacheTTL
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(0)
	}

	return &Service{
		provider:        cfg.Provider,
		cache:           cache,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		fetchTimeout:    fetchTimeout,
	}
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetRoute returns directions for the request, from cache when fresh.
// Concurrent identical requests share one provider call. The shared call is
// detached from any single caller's cancellation; each caller stops waiting
// when its own context ends.
func (s *Service) GetRoute(ctx context.Context, req Request) (*ProviderResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, &ProviderError{
			Provider: s.provider.Name(),
			Status:   "INVALID_REQUEST",
			Message:  err.Error(),
			Err:      ErrInvalidRequest,
		}
	}

	key := cacheKey(req)

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("directions cache read failed")
	}
	if cached != nil && cached.Fresh(time.Now()) {
		s.metrics.RecordCacheHit(ctx, s.provider.Name(), "get-route")
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for directions")
		return cached.Response, nil
	}
	s.metrics.RecordCacheMiss(ctx, s.provider.Name(), "get-route")

	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, req, key, cached)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug().Str("cache_key", key).Msg("shared in-flight directions request")
		}
		return res.Val.(*ProviderResponse), nil
	}
}

// fetch asks the provider and updates the cache. stale is the previously cached
// entry, if any, served when the provider fails within the stale window.
func (s *Service) fetch(ctx context.Context, req Request, key string, stale *CacheEntry) (*ProviderResponse, error) {
	s.logger.Debug().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Str("waypoints", req.Waypoints).
		Str("mode", string(req.Mode)).
		Str("provider", s.provider.Name()).
		Msg("fetching directions from provider")

	resp, err := s.provider.GetRoute(ctx, req)
	if err != nil {
		if stale != nil && time.Now().Before(stale.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Err(err).
				Time("fetched_at", stale.FetchedAt).
				Str("cache_key", key).
				Msg("serving stale directions data due to provider error")
			return stale.Response, nil
		}
		return nil, err
	}

	now := time.Now()
	entry := &CacheEntry{
		Response:  resp,
		FetchedAt: now,
		ExpiresAt: now.Add(s.cacheTTL),
	}
	if err := s.cache.Set(ctx, key, entry, s.staleIfErrorTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("directions cache write failed")
	}

	return resp, nil
}

// cacheKey identifies a request. Coordinates arrive as model-written strings,
// so whitespace is stripped to avoid near-duplicate keys.
// Format: {mode}|{origin}|{destination}|{waypoints}.
func cacheKey(req Request) string {
	strip := func(s string) string { return strings.Join(strings.Fields(s), "") }
	return strings.Join([]string{
		string(req.Mode),
		strip(req.Origin),
		strip(req.Destination),
		strip(req.Waypoints),
	}, "|")
}

func validateRequest(req Request) error {
	switch {
	case strings.TrimSpace(req.Origin) == "":
		return errors.New("origin is required")
	case strings.TrimSpace(req.Destination) == "":
		return errors.New("destination is required")
	}
	switch req.Mode {
	case ModeDriving, ModeBicycling, ModeWalking:
		return nil
	}
	return fmt.Errorf("unsupported mode %q", req.Mode)
}

// Ensure Service implements Provider interface.
var _ Provider = (*Service)(nil)
