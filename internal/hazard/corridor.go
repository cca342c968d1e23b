package hazard

import (
	"math"

	"github.com/hazardhub/hazardhub/pkg/polyline"
)

const (
	// MinCorridorRadiusMeters keeps short trips from searching an area smaller than a neighbourhood.
	MinCorridorRadiusMeters = 5000.0

	// CorridorRadiusFactor scales the straight-line trip distance into a search radius.
	CorridorRadiusFactor = 1.5

	metersPerDegreeLat = 111320.0
)

// Corridor is the circular search area around a trip.
type Corridor struct {
	Center       polyline.Coordinate
	RadiusMeters float64
}

// CorridorFor returns the corridor centered on the midpoint of origin and destination,
// with radius max(1.5 × straight-line distance, 5000m).
func CorridorFor(origin, destination polyline.Coordinate) Corridor {
	distance := polyline.Distance(origin, destination)
	return Corridor{
		Center:       polyline.Midpoint(origin, destination),
		RadiusMeters: math.Max(distance*CorridorRadiusFactor, MinCorridorRadiusMeters),
	}
}

// Contains reports whether the point lies inside the corridor.
func (c Corridor) Contains(p polyline.Coordinate) bool {
	return polyline.Distance(c.Center, p) <= c.RadiusMeters
}

// BoundingBox returns a lat/lon box that fully contains the corridor.
// Used as an index-friendly prefilter before the exact distance check.
// Longitudes are normalized to [-180, 180]; a box that crosses the
// antimeridian has minLon > maxLon and covers minLon..180 and -180..maxLon.
func (c Corridor) BoundingBox() (minLat, minLon, maxLat, maxLon float64) {
	dLat := c.RadiusMeters / metersPerDegreeLat
	minLat = math.Max(-90, c.Center.Lat-dLat)
	maxLat = math.Min(90, c.Center.Lat+dLat)

	cosLat := math.Cos(c.Center.Lat * math.Pi / 180)
	if cosLat <= 1e-6 || minLat == -90 || maxLat == 90 {
		return minLat, -180, maxLat, 180
	}
	dLon := c.RadiusMeters / (metersPerDegreeLat * cosLat)
	if dLon >= 180 {
		return minLat, -180, maxLat, 180
	}
	return minLat, normalizeLon(c.Center.Lon - dLon), maxLat, normalizeLon(c.Center.Lon + dLon)
}

func normalizeLon(lon float64) float64 {
	switch {
	case lon > 180:
		return lon - 360
	case lon < -180:
		return lon + 360
	}
	return lon
}
