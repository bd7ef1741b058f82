// Package geo holds the great-circle metric shared by discovery queries and
// real-time proximity notifications. Both paths must measure with DistanceKm.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine formula.
	EarthRadiusKm = 6371.0

	kmToMiles = 0.621371
)

var ErrInvalidPoint = errors.New("invalid coordinates")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Validate rejects NaN, infinities and out-of-range coordinates.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: not a number", ErrInvalidPoint)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidPoint, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidPoint, p.Lng)
	}
	return nil
}

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func toDegrees(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}

// DistanceKm returns the haversine distance between a and b in kilometers.
func DistanceKm(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// KmToMiles converts kilometers to statute miles.
func KmToMiles(km float64) float64 {
	return km * kmToMiles
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Box is a latitude/longitude rectangle in degrees.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether p lies inside the box (edges included).
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// BoundingBox returns a rectangle containing every point within radiusKm of
// center. Near the poles or across the antimeridian the longitude span
// widens to the full [-180, 180] range, so the box is never too small.
func BoundingBox(center Point, radiusKm float64) Box {
	angular := radiusKm / EarthRadiusKm
	lat := toRadians(center.Lat)

	minLat := lat - angular
	maxLat := lat + angular

	box := Box{MinLng: -180, MaxLng: 180}
	if minLat > -math.Pi/2 && maxLat < math.Pi/2 {
		ratio := math.Sin(angular) / math.Cos(lat)
		if ratio < 1 {
			dLng := toDegrees(math.Asin(ratio))
			if center.Lng-dLng >= -180 && center.Lng+dLng <= 180 {
				box.MinLng = center.Lng - dLng
				box.MaxLng = center.Lng + dLng
			}
		}
	}

	box.MinLat = math.Max(-90, toDegrees(minLat))
	box.MaxLat = math.Min(90, toDegrees(maxLat))
	return box
}
