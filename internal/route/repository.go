package route

import "context"

// Repository defines the interface for route persistence.
// ClearSelected and MarkSelected must each be a single atomic operation.
type Repository interface {
	// Get retrieves a route by ID.
	Get(ctx context.Context, id string) (*Route, error)

	// ListByTrip retrieves all routes of a trip, oldest first.
	ListByTrip(ctx context.Context, tripID string) ([]*Route, error)

	// GetSelected retrieves the selected route of a trip.
	// Returns ErrRouteNotFound if none is selected.
	GetSelected(ctx context.Context, tripID string) (*Route, error)

	// Create creates a new route.
	Create(ctx context.Context, r *Route) error

	// Update writes every mutable field of an existing route. TripID is never written.
	Update(ctx context.Context, r *Route) error

	// Delete deletes a route by ID.
	Delete(ctx context.Context, id string) error

	// ClearSelected unselects every selected route of the trip.
	ClearSelected(ctx context.Context, tripID string) error

	// MarkSelected selects the route with the given ID if it belongs to the trip.
	// Returns ErrRouteNotFound if no such route exists and ErrSelectionConflict
	// if another route of the trip is already selected.
	MarkSelected(ctx context.Context, tripID, id string) error
}
