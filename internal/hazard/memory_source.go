package hazard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hazardhub/hazardhub/pkg/polyline"
)

// Record is a stored hazard with the moderation fields a Summary does not carry.
type Record struct {
	Summary
	Status    Status
	ExpiresAt *time.Time
}

// Active reports whether the hazard should be shown to travellers at the given time.
func (r *Record) Active(at time.Time) bool {
	if r.Status != StatusActive {
		return false
	}
	return r.ExpiresAt == nil || at.Before(*r.ExpiresAt)
}

// InMemorySource is an in-memory implementation of Source.
// This is intended for testing and local development. Production should use PostgresSource.
type InMemorySource struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemorySource creates a new in-memory hazard source.
func NewInMemorySource(records ...Record) *InMemorySource {
	s := &InMemorySource{records: make(map[string]Record, len(records))}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

// Put adds or replaces a hazard record.
func (s *InMemorySource) Put(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

// FindActiveNear returns active hazards inside the corridor, nearest first.
func (s *InMemorySource) FindActiveNear(_ context.Context, corridor Corridor, at time.Time) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		summary  Summary
		distance float64
	}

	var hits []hit
	for _, r := range s.records {
		if !r.Active(at) {
			continue
		}
		p := polyline.Coordinate{Lat: r.Latitude, Lon: r.Longitude}
		d := polyline.Distance(corridor.Center, p)
		if d > corridor.RadiusMeters {
			continue
		}
		hits = append(hits, hit{summary: r.Summary, distance: d})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance == hits[j].distance {
			return hits[i].summary.ID < hits[j].summary.ID
		}
		return hits[i].distance < hits[j].distance
	})

	result := make([]Summary, 0, len(hits))
	for _, h := range hits {
		result = append(result, h.summary)
	}
	return result, nil
}

// Ensure InMemorySource implements Source interface.
var _ Source = (*InMemorySource)(nil)
