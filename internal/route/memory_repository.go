package route

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	routes map[string]*Route

	// mutations counts calls to the writing methods.
	mutations atomic.Int64
}

// NewInMemoryRepository creates a new in-memory route repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		routes: make(map[string]*Route),
	}
}

// Mutations returns how many writing calls the repository has received.
func (r *InMemoryRepository) Mutations() int64 {
	return r.mutations.Load()
}

// Get retrieves a route by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.routes[id]
	if !ok {
		return nil, ErrRouteNotFound
	}
	return rt.clone(), nil
}

// ListByTrip retrieves all routes of a trip, oldest first.
func (r *InMemoryRepository) ListByTrip(_ context.Context, tripID string) ([]*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*Route, 0)
	for _, rt := range r.routes {
		if rt.TripID == tripID {
			routes = append(routes, rt.clone())
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].CreatedAt.Equal(routes[j].CreatedAt) {
			return routes[i].ID < routes[j].ID
		}
		return routes[i].CreatedAt.Before(routes[j].CreatedAt)
	})
	return routes, nil
}

// GetSelected retrieves the selected route of a trip.
func (r *InMemoryRepository) GetSelected(_ context.Context, tripID string) (*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if rt.TripID == tripID && rt.IsSelected {
			return rt.clone(), nil
		}
	}
	return nil, ErrRouteNotFound
}

// Create creates a new route.
func (r *InMemoryRepository) Create(_ context.Context, rt *Route) error {
	r.mutations.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[rt.ID] = rt.clone()
	return nil
}

// Update writes every mutable field of an existing route.
func (r *InMemoryRepository) Update(_ context.Context, rt *Route) error {
	r.mutations.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.routes[rt.ID]
	if !ok {
		return ErrRouteNotFound
	}

	updated := rt.clone()
	updated.TripID = existing.TripID
	updated.IsSelected = existing.IsSelected
	updated.CreatedAt = existing.CreatedAt
	r.routes[rt.ID] = updated
	return nil
}

// Delete deletes a route by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mutations.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[id]; !ok {
		return ErrRouteNotFound
	}
	delete(r.routes, id)
	return nil
}

// ClearSelected unselects every selected route of the trip.
func (r *InMemoryRepository) ClearSelected(_ context.Context, tripID string) error {
	r.mutations.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, rt := range r.routes {
		if rt.TripID == tripID && rt.IsSelected {
			rt.IsSelected = false
			rt.UpdatedAt = now
		}
	}
	return nil
}

// MarkSelected selects a route. Like the unique index in Postgres, it refuses
// to select a second route of the same trip.
func (r *InMemoryRepository) MarkSelected(_ context.Context, tripID, id string) error {
	r.mutations.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.routes[id]
	if !ok || target.TripID != tripID {
		return ErrRouteNotFound
	}
	if target.IsSelected {
		return nil
	}
	for _, rt := range r.routes {
		if rt.TripID == tripID && rt.IsSelected {
			return ErrSelectionConflict
		}
	}

	target.IsSelected = true
	target.UpdatedAt = time.Now()
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
