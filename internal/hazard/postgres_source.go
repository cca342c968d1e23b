package hazard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazardhub/hazardhub/pkg/polyline"
)

// PostgresSource is a PostgreSQL implementation of Source.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a new PostgreSQL hazard source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// FindActiveNear returns active hazards inside the corridor, nearest first,
// ties broken by ID. The bounding box narrows the scan on the (latitude,
// longitude) index and the database orders by planar distance so the row cap
// drops the farthest hazards; the exact great-circle check happens here.
func (s *PostgresSource) FindActiveNear(ctx context.Context, corridor Corridor, at time.Time) ([]Summary, error) {
	minLat, minLon, maxLat, maxLon := corridor.BoundingBox()
	cosLat := math.Cos(corridor.Center.Lat * math.Pi / 180)

	query := `
		SELECT
			id, latitude, longitude, severity, description,
			COALESCE(affected_radius_meters, $7), COALESCE(address, '')
		FROM hazards
		WHERE status = 'ACTIVE'
			AND (expires_at IS NULL OR expires_at > $1)
			AND latitude BETWEEN $2::float8 AND $3::float8
			AND CASE
				WHEN $4::float8 <= $5::float8 THEN longitude BETWEEN $4::float8 AND $5::float8
				ELSE longitude >= $4::float8 OR longitude <= $5::float8
			END
		ORDER BY
			power(latitude - $8::float8, 2)
				+ power(least(abs(longitude - $9::float8), 360 - abs(longitude - $9::float8)) * $10::float8, 2),
			id
		LIMIT $6
	`

	rows, err := s.pool.Query(ctx, query,
		at, minLat, maxLat, minLon, maxLon, maxCorridorHazards, DefaultAffectedRadiusMeters,
		corridor.Center.Lat, corridor.Center.Lon, cosLat,
	)
	if err != nil {
		return nil, fmt.Errorf("querying hazards: %w", err)
	}
	defer rows.Close()

	type hit struct {
		summary  Summary
		distance float64
	}

	var hits []hit
	for rows.Next() {
		var (
			h        Summary
			severity string
		)
		if err := rows.Scan(
			&h.ID,
			&h.Latitude,
			&h.Longitude,
			&severity,
			&h.Description,
			&h.AffectedRadiusMeters,
			&h.Address,
		); err != nil {
			return nil, fmt.Errorf("scanning hazard: %w", err)
		}

		h.Severity, err = ParseSeverity(severity)
		if err != nil {
			return nil, fmt.Errorf("hazard %s: %w", h.ID, err)
		}

		d := polyline.Distance(corridor.Center, polyline.Coordinate{Lat: h.Latitude, Lon: h.Longitude})
		if d <= corridor.RadiusMeters {
			hits = append(hits, hit{summary: h, distance: d})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
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

// maxCorridorHazards bounds the prompt size for dense areas.
const maxCorridorHazards = 200

// Ensure PostgresSource implements Source interface.
var _ Source = (*PostgresSource)(nil)
