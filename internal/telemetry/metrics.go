package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hazardhub/hazardhub/internal/telemetry"

// ProviderMetrics records calls to external providers (generative model, directions).
// A nil *ProviderMetrics is valid and records nothing.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHit        metric.Int64Counter
	cacheMiss       metric.Int64Counter
}

// NewProviderMetrics creates metrics for monitoring external provider calls.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Number of provider cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Number of provider cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHit:        cacheHit,
		cacheMiss:       cacheMiss,
	}, nil
}

// RecordRequest records metrics for a provider request.
func (m *ProviderMetrics) RecordRequest(ctx context.Context, provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := providerAttrs(provider, operation)
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detach from request cancellation so late failures are still counted.
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit for a provider.
func (m *ProviderMetrics) RecordCacheHit(ctx context.Context, provider, operation string) {
	if m == nil {
		return
	}
	m.cacheHit.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

// RecordCacheMiss records a cache miss for a provider.
func (m *ProviderMetrics) RecordCacheMiss(ctx context.Context, provider, operation string) {
	if m == nil {
		return
	}
	m.cacheMiss.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

func providerAttrs(provider, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}

// SuggestionMetrics records outcomes of the route suggestion pipeline.
// A nil *SuggestionMetrics is valid and records nothing.
type SuggestionMetrics struct {
	candidates metric.Int64Counter
	dropped    metric.Int64Counter
	tierForced metric.Int64Counter
}

// NewSuggestionMetrics creates metrics for the suggestion pipeline.
func NewSuggestionMetrics() (*SuggestionMetrics, error) {
	meter := otel.Meter(meterName)

	candidates, err := meter.Int64Counter(
		"suggestion.candidates",
		metric.WithDescription("Candidate routes proposed by the model"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"suggestion.enrichment.dropped",
		metric.WithDescription("Candidate routes dropped because no geometry could be resolved"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	tierForced, err := meter.Int64Counter(
		"suggestion.tier.forced",
		metric.WithDescription("Candidate routes whose tier was corrected by policy"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	return &SuggestionMetrics{
		candidates: candidates,
		dropped:    dropped,
		tierForced: tierForced,
	}, nil
}

// RecordCandidates records the number of candidates the model proposed.
func (m *SuggestionMetrics) RecordCandidates(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.candidates.Add(context.WithoutCancel(ctx), int64(n))
}

// RecordDropped records a candidate dropped for the given reason.
func (m *SuggestionMetrics) RecordDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.dropped.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordTierForced records a tier correction.
func (m *SuggestionMetrics) RecordTierForced(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.tierForced.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("tier.from", from),
		attribute.String("tier.to", to),
	))
}
