// Package geo provides geolocation primitives for the clustering engine:
// coordinate validation, great-circle distance, bounding boxes, and
// privacy-preserving location masking.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusM is the mean Earth radius in meters, used for haversine distance.
const EarthRadiusM = 6371000.0

// MetersPerDegreeLat is the approximate length of one degree of latitude in meters.
// Longitude degree length shrinks with latitude; see LngDegreeLengthM.
const MetersPerDegreeLat = 111320.0

// minCosLat guards against division by zero near the poles.
const minCosLat = 0.00001

// ErrInvalidCoordinate is returned when a latitude/longitude pair is outside
// the valid domain (|lat| > 90 or |lng| > 180).
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ErrInvalidRange is returned for malformed bounding boxes (southwest corner
// north of northeast) and inverted time ranges in range queries.
var ErrInvalidRange = errors.New("invalid range")

// Point represents a geographic coordinate with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidateCoordinate checks that lat/lng fall within the valid geographic domain.
func ValidateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("%w: NaN coordinate", ErrInvalidCoordinate)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinate, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinate, lng)
	}
	return nil
}

// HaversineDistanceM computes the great-circle distance in meters between two
// coordinates using the haversine formula.
func HaversineDistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// LngDegreeLengthM returns the length in meters of one degree of longitude
// at the given latitude. Clamped near the poles to stay positive.
func LngDegreeLengthM(lat float64) float64 {
	cos := math.Cos(lat * math.Pi / 180)
	if cos < minCosLat {
		cos = minCosLat
	}
	return MetersPerDegreeLat * cos
}

// Bbox is a rectangular latitude/longitude query region defined by its
// southwest and northeast corners. A box whose SW longitude is greater than
// its NE longitude is interpreted as crossing the antimeridian.
type Bbox struct {
	SWLat float64
	SWLng float64
	NELat float64
	NELng float64
}

// Validate checks corner coordinates and rejects boxes whose southwest corner
// lies north of the northeast corner. Longitude inversion is not an error:
// it denotes an antimeridian-crossing box.
func (b Bbox) Validate() error {
	if err := ValidateCoordinate(b.SWLat, b.SWLng); err != nil {
		return err
	}
	if err := ValidateCoordinate(b.NELat, b.NELng); err != nil {
		return err
	}
	if b.SWLat > b.NELat {
		return fmt.Errorf("%w: southwest corner north of northeast corner", ErrInvalidRange)
	}
	return nil
}

// CrossesAntimeridian reports whether the box wraps across the 180° meridian.
func (b Bbox) CrossesAntimeridian() bool {
	return b.SWLng > b.NELng
}

// Split returns the box as one or two non-wrapping sub-boxes. Boxes crossing
// the antimeridian are split at ±180° and callers union the results.
func (b Bbox) Split() []Bbox {
	if !b.CrossesAntimeridian() {
		return []Bbox{b}
	}
	return []Bbox{
		{SWLat: b.SWLat, SWLng: b.SWLng, NELat: b.NELat, NELng: 180},
		{SWLat: b.SWLat, SWLng: -180, NELat: b.NELat, NELng: b.NELng},
	}
}

// Contains reports whether the point falls within the closed rectangle,
// honoring antimeridian wrapping.
func (b Bbox) Contains(lat, lng float64) bool {
	if lat < b.SWLat || lat > b.NELat {
		return false
	}
	if b.CrossesAntimeridian() {
		return lng >= b.SWLng || lng <= b.NELng
	}
	return lng >= b.SWLng && lng <= b.NELng
}

// BboxFromCenterM builds a bounding box around a center point with the given
// radius in meters. Used as a cheap prefilter before precise haversine checks.
func BboxFromCenterM(lat, lng, radiusM float64) Bbox {
	latDelta := radiusM / MetersPerDegreeLat
	lngDelta := radiusM / LngDegreeLengthM(lat)
	return Bbox{
		SWLat: lat - latDelta,
		SWLng: lng - lngDelta,
		NELat: lat + latDelta,
		NELng: lng + lngDelta,
	}
}
