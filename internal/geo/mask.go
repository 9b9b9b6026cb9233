package geo

import (
	"fmt"
	"math"
)

// PrivacyMode selects how much a stream's true coordinate is coarsened before
// it is disclosed to any caller.
type PrivacyMode string

// Supported privacy modes, from most to least precise.
const (
	PrivacyExact      PrivacyMode = "exact"
	PrivacyMasked100m PrivacyMode = "masked_100m"
	PrivacyMasked1km  PrivacyMode = "masked_1km"
)

// maskRadiusM maps each masked mode to its grid cell size in meters.
var maskRadiusM = map[PrivacyMode]float64{
	PrivacyMasked100m: 100.0,
	PrivacyMasked1km:  1000.0,
}

// privacyRank orders modes by coarseness for most-restrictive-wins selection.
var privacyRank = map[PrivacyMode]int{
	PrivacyExact:      0,
	PrivacyMasked100m: 1,
	PrivacyMasked1km:  2,
}

// ParsePrivacyMode validates a wire-format privacy mode string.
func ParsePrivacyMode(s string) (PrivacyMode, error) {
	switch PrivacyMode(s) {
	case PrivacyExact, PrivacyMasked100m, PrivacyMasked1km:
		return PrivacyMode(s), nil
	}
	return "", fmt.Errorf("unknown privacy mode %q", s)
}

// CoarsestMode returns the most restrictive of the given modes. An empty
// input defaults to exact.
func CoarsestMode(modes ...PrivacyMode) PrivacyMode {
	coarsest := PrivacyExact
	for _, m := range modes {
		if privacyRank[m] > privacyRank[coarsest] {
			coarsest = m
		}
	}
	return coarsest
}

// Mask coarsens a true coordinate according to the privacy mode by snapping
// it to the center of a grid cell sized to the mode's radius. The transform
// is deterministic: repeated calls with the same input yield the same output,
// and distinct coordinates within the same cell are indistinguishable after
// masking. Exact mode is the identity.
//
// The longitude cell width is derived from the snapped latitude (not the raw
// input) so every point in a cell sees the same cell geometry.
func Mask(lat, lng float64, mode PrivacyMode) (float64, float64, error) {
	if err := ValidateCoordinate(lat, lng); err != nil {
		return 0, 0, err
	}
	if mode == PrivacyExact {
		return lat, lng, nil
	}
	radius, ok := maskRadiusM[mode]
	if !ok {
		return 0, 0, fmt.Errorf("unknown privacy mode %q", mode)
	}

	latStep := radius / MetersPerDegreeLat
	snappedLat := snapToCellCenter(lat, latStep)

	lngStep := radius / LngDegreeLengthM(snappedLat)
	snappedLng := snapToCellCenter(lng, lngStep)

	// Snapping can push a point just past the domain edge; clamp it back.
	snappedLat = math.Max(-90, math.Min(90, snappedLat))
	snappedLng = math.Max(-180, math.Min(180, snappedLng))

	return snappedLat, snappedLng, nil
}

// snapToCellCenter returns the center of the grid cell of width step that
// contains v.
func snapToCellCenter(v, step float64) float64 {
	return (math.Floor(v/step) + 0.5) * step
}
