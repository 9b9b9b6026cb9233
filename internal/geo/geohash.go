package geo

import "strings"

// base32 is the geohash base32 alphabet (excludes a, i, l, o).
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Geohash precisions used for disclosed coordinates. The precision tracks the
// privacy mode so the geohash never reveals more than the masked coordinate:
// 6 characters is roughly ±610 m, 7 is roughly ±76 m.
const (
	GeohashPrecisionExact   = 8
	GeohashPrecision100m    = 7
	GeohashPrecision1km     = 6
	DefaultGeohashPrecision = GeohashPrecision1km
)

// GeohashPrecisionForMode returns the geohash precision matching a privacy mode.
func GeohashPrecisionForMode(mode PrivacyMode) int {
	switch mode {
	case PrivacyMasked100m:
		return GeohashPrecision100m
	case PrivacyMasked1km:
		return GeohashPrecision1km
	default:
		return GeohashPrecisionExact
	}
}

// EncodeGeohash encodes latitude and longitude into a geohash string of the
// given precision using the standard interleaved base32 algorithm.
func EncodeGeohash(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = DefaultGeohashPrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var gh strings.Builder
	gh.Grow(precision)

	bits := 0
	var ch uint

	even := true
	for gh.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if lng > mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++

		if bits == 5 {
			gh.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return gh.String()
}

// CoarseGeohash returns the geohash of an already-masked coordinate at the
// precision implied by the privacy mode that produced it.
func CoarseGeohash(maskedLat, maskedLng float64, mode PrivacyMode) string {
	return EncodeGeohash(maskedLat, maskedLng, GeohashPrecisionForMode(mode))
}
