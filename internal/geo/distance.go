// Package geo holds the spherical geometry helpers shared by the device
// sampler and the geofence evaluator.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `yaml:"lat" json:"lat" validate:"latitude"`
	Lng float64 `yaml:"lng" json:"lng" validate:"longitude"`
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial great-circle bearing from a to b in degrees,
// normalised to [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// InPolygon reports whether p lies inside the polygon ring using ray casting.
// The ring may be open or closed.
func InPolygon(p Point, ring []Point) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) &&
			p.Lng < (b.Lng-a.Lng)*(p.Lat-a.Lat)/(b.Lat-a.Lat)+a.Lng {
			inside = !inside
		}
	}
	return inside
}

// DistanceToRing returns the shortest distance in meters from p to any edge
// of the ring. Edges are projected onto a local equirectangular plane around
// p, which is accurate enough at geofence scale.
func DistanceToRing(p Point, ring []Point) float64 {
	if len(ring) == 0 {
		return math.Inf(1)
	}
	if len(ring) == 1 {
		return Distance(p, ring[0])
	}

	cosLat := math.Cos(toRad(p.Lat))
	project := func(q Point) (float64, float64) {
		x := toRad(q.Lng-p.Lng) * cosLat * EarthRadiusMeters
		y := toRad(q.Lat-p.Lat) * EarthRadiusMeters
		return x, y
	}

	best := math.Inf(1)
	for i := range ring {
		ax, ay := project(ring[i])
		bx, by := project(ring[(i+1)%len(ring)])
		if d := distanceToSegment(ax, ay, bx, by); d < best {
			best = d
		}
	}
	return best
}

// distanceToSegment is the distance from the origin to segment ab.
func distanceToSegment(ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(ax, ay)
	}
	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(ax+t*dx, ay+t*dy)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
