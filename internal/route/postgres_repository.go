package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

const routeColumns = `
	id, trip_id, polyline, waypoints,
	distance_meters, duration_seconds,
	safety_score, safety_analysis, hazards_considered,
	is_selected, created_at, updated_at
`

// PostgresRepository is a PostgreSQL implementation of Repository.
// The routes table carries a partial unique index on (trip_id) WHERE is_selected.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL route repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a route by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`
	return r.scanRoute(r.pool.QueryRow(ctx, query, id))
}

// ListByTrip retrieves all routes of a trip, oldest first.
func (r *PostgresRepository) ListByTrip(ctx context.Context, tripID string) ([]*Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE trip_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := make([]*Route, 0)
	for rows.Next() {
		rt, err := r.scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return routes, nil
}

// GetSelected retrieves the selected route of a trip.
func (r *PostgresRepository) GetSelected(ctx context.Context, tripID string) (*Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE trip_id = $1 AND is_selected`
	return r.scanRoute(r.pool.QueryRow(ctx, query, tripID))
}

// scanRoute scans a route from a row.
func (r *PostgresRepository) scanRoute(row pgx.Row) (*Route, error) {
	var rt Route
	err := row.Scan(
		&rt.ID,
		&rt.TripID,
		&rt.Polyline,
		&rt.Waypoints,
		&rt.DistanceMeters,
		&rt.DurationSeconds,
		&rt.SafetyScore,
		&rt.SafetyAnalysis,
		&rt.HazardsConsidered,
		&rt.IsSelected,
		&rt.CreatedAt,
		&rt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, fmt.Errorf("scanning route: %w", err)
	}
	return &rt, nil
}

// Create creates a new route.
func (r *PostgresRepository) Create(ctx context.Context, rt *Route) error {
	query := `
		INSERT INTO routes (` + routeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		rt.ID,
		rt.TripID,
		rt.Polyline,
		jsonObject(rt.Waypoints),
		rt.DistanceMeters,
		rt.DurationSeconds,
		rt.SafetyScore,
		jsonObject(rt.SafetyAnalysis),
		textArray(rt.HazardsConsidered),
		rt.IsSelected,
		rt.CreatedAt,
		rt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}
	return nil
}

// Update writes every mutable field of an existing route. trip_id is not in the SET list.
func (r *PostgresRepository) Update(ctx context.Context, rt *Route) error {
	query := `
		UPDATE routes SET
			polyline = $2,
			waypoints = $3,
			distance_meters = $4,
			duration_seconds = $5,
			safety_score = $6,
			safety_analysis = $7,
			hazards_considered = $8,
			updated_at = $9
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		rt.ID,
		rt.Polyline,
		jsonObject(rt.Waypoints),
		rt.DistanceMeters,
		rt.DurationSeconds,
		rt.SafetyScore,
		jsonObject(rt.SafetyAnalysis),
		textArray(rt.HazardsConsidered),
		rt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}

// Delete deletes a route by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}

// ClearSelected unselects every selected route of the trip in one statement.
func (r *PostgresRepository) ClearSelected(ctx context.Context, tripID string) error {
	query := `
		UPDATE routes SET is_selected = false, updated_at = now()
		WHERE trip_id = $1 AND is_selected
	`
	if _, err := r.pool.Exec(ctx, query, tripID); err != nil {
		return fmt.Errorf("clearing selection: %w", err)
	}
	return nil
}

// MarkSelected selects a route in one statement.
func (r *PostgresRepository) MarkSelected(ctx context.Context, tripID, id string) error {
	query := `
		UPDATE routes SET is_selected = true, updated_at = now()
		WHERE id = $1 AND trip_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, tripID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSelectionConflict
		}
		return fmt.Errorf("marking route selected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}

// jsonObject keeps NOT NULL jsonb columns at '{}' for nil maps.
func jsonObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
