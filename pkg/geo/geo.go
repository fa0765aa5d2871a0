// Package geo answers the distance and geofence questions the tracker needs.
// All distances are in meters on a spherical earth.
package geo

import (
	"math"

	"fleettrack-service/internal/domain/entity"
)

// EarthRadiusMeters is the mean earth radius used by every calculation here.
const EarthRadiusMeters = 6371000.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// DepotPoint returns the center of a depot's geofence.
func DepotPoint(d entity.Depot) Point {
	return Point{Lat: d.Latitude, Lon: d.Longitude}
}

// PositionPoint returns the location of a vehicle fix.
func PositionPoint(p entity.VehiclePosition) Point {
	return Point{Lat: p.Latitude, Lon: p.Longitude}
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the haversine great-circle distance between two points.
func Distance(p1, p2 Point) float64 {
	phi1 := toRad(p1.Lat)
	phi2 := toRad(p2.Lat)
	dphi := toRad(p2.Lat - p1.Lat)
	dl := toRad(p2.Lon - p1.Lon)
	a := math.Sin(dphi/2)*math.Sin(dphi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dl/2)*math.Sin(dl/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// IsWithin reports whether p lies inside the depot's geofence. The boundary counts as inside.
func IsWithin(p Point, d entity.Depot) bool {
	return Distance(p, DepotPoint(d)) <= d.RadiusMeters
}

// InitialBearing returns the bearing in radians from p1 towards p2.
func InitialBearing(p1, p2 Point) float64 {
	phi1 := toRad(p1.Lat)
	phi2 := toRad(p2.Lat)
	dl := toRad(p2.Lon - p1.Lon)
	y := math.Sin(dl) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dl)
	return math.Atan2(y, x)
}

// AlongTrackDistance projects p onto the great circle running from start
// through end and returns the signed distance from start to the projection.
// Negative values mean p lies behind start. ok is false when the path is
// degenerate or the projection is numerically undefined.
func AlongTrackDistance(start, end, p Point) (meters float64, ok bool) {
	if Distance(start, end) == 0 {
		return 0, false
	}
	d13 := Distance(start, p) / EarthRadiusMeters
	if d13 == 0 {
		return 0, true
	}
	theta := InitialBearing(start, p) - InitialBearing(start, end)
	xt := math.Asin(math.Sin(d13) * math.Sin(theta))
	cosXt := math.Cos(xt)
	if cosXt == 0 {
		return 0, false
	}
	ratio := math.Cos(d13) / cosXt
	// rounding can push the ratio just past 1
	ratio = math.Max(-1, math.Min(1, ratio))
	at := math.Acos(ratio) * EarthRadiusMeters
	if math.IsNaN(at) {
		return 0, false
	}
	if math.Cos(theta) < 0 {
		at = -at
	}
	return at, true
}
