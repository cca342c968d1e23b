// Package polyline decodes and encodes Google encoded polylines and measures
// how close a decoded path comes to a point.
// The format is documented at https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
)

// ErrMalformed is returned for input that ends in the middle of a value or
// holds an odd number of values.
var ErrMalformed = errors.New("polyline: malformed encoding")

// precision is the fixed-point scale used by the Directions API (5 decimals).
const precision = 1e5

const earthRadiusMeters = 6371000

// Coordinate represents a geographic point with latitude and longitude.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Decode turns an encoded polyline into coordinates. An empty string decodes
// to nil without error.
func Decode(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	coords := make([]Coordinate, 0, len(encoded)/4)
	var lat, lon, i int
	for i < len(encoded) {
		dLat, next, ok := readValue(encoded, i)
		if !ok {
			return nil, ErrMalformed
		}
		dLon, next, ok := readValue(encoded, next)
		if !ok {
			return nil, ErrMalformed
		}
		i = next
		lat += dLat
		lon += dLon
		coords = append(coords, Coordinate{Lat: float64(lat) / precision, Lon: float64(lon) / precision})
	}
	return coords, nil
}

// readValue reads one zigzag-encoded delta starting at i.
func readValue(s string, i int) (value, next int, ok bool) {
	var result, shift int
	for i < len(s) {
		b := int(s[i]) - 63
		i++
		if b < 0 || b > 0x3f {
			return 0, i, false
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), i, true
			}
			return result >> 1, i, true
		}
	}
	return 0, i, false
}

// Encode turns coordinates into an encoded polyline.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(coords)*8)
	var prevLat, prevLon int
	for _, c := range coords {
		lat := int(math.Round(c.Lat * precision))
		lon := int(math.Round(c.Lon * precision))
		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

func appendValue(buf []byte, v int) []byte {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		buf = append(buf, byte((u&0x1f)|0x20)+63)
		u >>= 5
	}
	return append(buf, byte(u)+63)
}

// Distance returns the great-circle distance between two coordinates in meters.
func Distance(a, b Coordinate) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	sinDLat := math.Sin(radians(b.Lat-a.Lat) / 2)
	sinDLon := math.Sin(radians(b.Lon-a.Lon) / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(math.Min(1, h)))
}

// Midpoint returns the arithmetic midpoint of two coordinates, taking the
// short way around when they straddle the antimeridian.
// Good enough for city-scale corridors.
func Midpoint(a, b Coordinate) Coordinate {
	bLon := b.Lon
	switch {
	case bLon-a.Lon > 180:
		bLon -= 360
	case a.Lon-bLon > 180:
		bLon += 360
	}
	lon := (a.Lon + bLon) / 2
	switch {
	case lon > 180:
		lon -= 360
	case lon < -180:
		lon += 360
	}
	return Coordinate{Lat: (a.Lat + b.Lat) / 2, Lon: lon}
}

// DistanceToPath returns the shortest distance in meters from p to the path,
// measured to each segment rather than only to its vertices. Segments are
// projected onto a plane tangent at p, which is accurate at route scale.
// An empty path is +Inf away.
func DistanceToPath(path []Coordinate, p Coordinate) float64 {
	switch len(path) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(path[0], p)
	}

	best := math.Inf(1)
	for i := 1; i < len(path); i++ {
		if d := distanceToSegment(path[i-1], path[i], p); d < best {
			best = d
		}
	}
	return best
}

// PassesWithin reports whether the path comes within radiusMeters of p.
func PassesWithin(path []Coordinate, p Coordinate, radiusMeters float64) bool {
	return DistanceToPath(path, p) <= radiusMeters
}

// distanceToSegment projects a and b onto an equirectangular plane centred on
// p and returns the planar distance from the origin to segment ab.
func distanceToSegment(a, b, p Coordinate) float64 {
	cosLat := math.Cos(radians(p.Lat))
	ax, ay := radians(a.Lon-p.Lon)*cosLat*earthRadiusMeters, radians(a.Lat-p.Lat)*earthRadiusMeters
	bx, by := radians(b.Lon-p.Lon)*cosLat*earthRadiusMeters, radians(b.Lat-p.Lat)*earthRadiusMeters

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = math.Max(0, math.Min(1, -(ax*dx+ay*dy)/lenSq))
	}
	return math.Hypot(ax+t*dx, ay+t*dy)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
