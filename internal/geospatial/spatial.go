// Package geospatial scores the federal-neighborhood quality of a point from
// the inventory of government-occupied properties around it.
package geospatial

import (
	"math"

	"github.com/rotisserie/eris"
)

// EarthRadiusMiles is the mean Earth radius used for haversine distances.
const EarthRadiusMiles = 3958.8

// milesPerDegreeLat is the length of one degree of latitude.
const milesPerDegreeLat = 69.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BBox represents a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Validate checks the box is inside WGS84 bounds and not inverted.
func (b BBox) Validate() error {
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLng < -180 || b.MaxLng > 180 {
		return eris.Errorf("geo: bbox out of range %+v", b)
	}
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return eris.Errorf("geo: bbox inverted %+v", b)
	}
	return nil
}

// Contains reports whether the point lies inside the box (inclusive).
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// HaversineMiles returns the great-circle distance between two points.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BBoxesAround returns the boxes that together contain the circle of
// radiusMiles around the point. The longitude span widens with latitude and
// covers the full range near the poles. A circle crossing the antimeridian is
// split into one box on each side.
func BBoxesAround(lat, lng, radiusMiles float64) []BBox {
	dLat := radiusMiles / milesPerDegreeLat
	minLat, maxLat := math.Max(-90, lat-dLat), math.Min(90, lat+dLat)
	full := []BBox{{MinLng: -180, MinLat: minLat, MaxLng: 180, MaxLat: maxLat}}

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 || minLat == -90 || maxLat == 90 {
		return full
	}
	dLng := radiusMiles / (milesPerDegreeLat * cosLat)
	if dLng >= 180 {
		return full
	}

	minLng, maxLng := lng-dLng, lng+dLng
	switch {
	case minLng < -180:
		return []BBox{
			{MinLng: -180, MinLat: minLat, MaxLng: maxLng, MaxLat: maxLat},
			{MinLng: minLng + 360, MinLat: minLat, MaxLng: 180, MaxLat: maxLat},
		}
	case maxLng > 180:
		return []BBox{
			{MinLng: minLng, MinLat: minLat, MaxLng: 180, MaxLat: maxLat},
			{MinLng: -180, MinLat: minLat, MaxLng: maxLng - 360, MaxLat: maxLat},
		}
	default:
		return []BBox{{MinLng: minLng, MinLat: minLat, MaxLng: maxLng, MaxLat: maxLat}}
	}
}

// CircleAreaSqMiles returns the area of a circle of the given radius.
func CircleAreaSqMiles(radiusMiles float64) float64 {
	return math.Pi * radiusMiles * radiusMiles
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
