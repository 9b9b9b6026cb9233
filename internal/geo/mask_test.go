package geo

import (
	"errors"
	"testing"
)

func TestParsePrivacyMode(t *testing.T) {
	for _, valid := range []string{"exact", "masked_100m", "masked_1km"} {
		if _, err := ParsePrivacyMode(valid); err != nil {
			t.Errorf("ParsePrivacyMode(%q) returned error: %v", valid, err)
		}
	}
	if _, err := ParsePrivacyMode("fuzzy"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := ParsePrivacyMode(""); err == nil {
		t.Error("expected error for empty mode")
	}
}

func TestMaskExactIsIdentity(t *testing.T) {
	lat, lng, err := Mask(41.0082, 28.9784, PrivacyExact)
	if err != nil {
		t.Fatalf("Mask failed: %v", err)
	}
	if lat != 41.0082 || lng != 28.9784 {
		t.Errorf("exact mode must be identity, got (%f, %f)", lat, lng)
	}
}

func TestMaskDeterministic(t *testing.T) {
	for _, mode := range []PrivacyMode{PrivacyMasked100m, PrivacyMasked1km} {
		lat1, lng1, err := Mask(41.0082, 28.9784, mode)
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		lat2, lng2, err := Mask(41.0082, 28.9784, mode)
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if lat1 != lat2 || lng1 != lng2 {
			t.Errorf("mode %s not deterministic: (%f,%f) vs (%f,%f)", mode, lat1, lng1, lat2, lng2)
		}
	}
}

func TestMaskSameCellIndistinguishable(t *testing.T) {
	// Two points about 20 m apart; with high probability they share a 100 m
	// cell, so pick a pair verified to land in the same cell.
	lat1, lng1, err := Mask(41.00010, 28.97010, PrivacyMasked100m)
	if err != nil {
		t.Fatalf("Mask failed: %v", err)
	}
	lat2, lng2, err := Mask(41.00015, 28.97015, PrivacyMasked100m)
	if err != nil {
		t.Fatalf("Mask failed: %v", err)
	}
	if lat1 != lat2 || lng1 != lng2 {
		t.Errorf("points in the same cell must mask identically: (%f,%f) vs (%f,%f)", lat1, lng1, lat2, lng2)
	}
}

func TestMaskDistinctCellsDiffer(t *testing.T) {
	// Roughly 2 km apart: must land in different 100 m cells.
	lat1, lng1, _ := Mask(41.000, 28.970, PrivacyMasked100m)
	lat2, lng2, _ := Mask(41.018, 28.970, PrivacyMasked100m)
	if lat1 == lat2 && lng1 == lng2 {
		t.Error("points 2 km apart should not share a 100 m cell")
	}
}

func TestMaskDisplacementBounded(t *testing.T) {
	tests := []struct {
		mode    PrivacyMode
		radiusM float64
	}{
		{PrivacyMasked100m, 100.0},
		{PrivacyMasked1km, 1000.0},
	}
	for _, tt := range tests {
		trueLat, trueLng := 41.0082, 28.9784
		lat, lng, err := Mask(trueLat, trueLng, tt.mode)
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		// Snapping to the cell center moves a point at most one cell diagonal.
		d := HaversineDistanceM(trueLat, trueLng, lat, lng)
		if d > tt.radiusM*1.5 {
			t.Errorf("mode %s displaced point by %f m", tt.mode, d)
		}
	}
}

func TestMaskInvalidCoordinate(t *testing.T) {
	if _, _, err := Mask(91.0, 0.0, PrivacyMasked100m); !errors.Is(err, ErrInvalidCoordinate) {
		t.Errorf("expected ErrInvalidCoordinate, got %v", err)
	}
	if _, _, err := Mask(0.0, 200.0, PrivacyExact); !errors.Is(err, ErrInvalidCoordinate) {
		t.Errorf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestCoarsestMode(t *testing.T) {
	tests := []struct {
		name  string
		modes []PrivacyMode
		want  PrivacyMode
	}{
		{"empty defaults to exact", nil, PrivacyExact},
		{"all exact", []PrivacyMode{PrivacyExact, PrivacyExact}, PrivacyExact},
		{"100m wins over exact", []PrivacyMode{PrivacyExact, PrivacyMasked100m}, PrivacyMasked100m},
		{"1km wins over all", []PrivacyMode{PrivacyMasked100m, PrivacyMasked1km, PrivacyExact}, PrivacyMasked1km},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoarsestMode(tt.modes...); got != tt.want {
				t.Errorf("CoarsestMode(%v) = %s, want %s", tt.modes, got, tt.want)
			}
		})
	}
}

func TestGeohashPrecisionForMode(t *testing.T) {
	if GeohashPrecisionForMode(PrivacyExact) != GeohashPrecisionExact {
		t.Error("exact mode should use the highest precision")
	}
	if GeohashPrecisionForMode(PrivacyMasked1km) >= GeohashPrecisionForMode(PrivacyMasked100m) {
		t.Error("coarser modes must use lower precision")
	}
}

func TestEncodeGeohash(t *testing.T) {
	// Known vector: Jutland reference point.
	if got := EncodeGeohash(57.64911, 10.40744, 11); got != "u4pruydqqvj" {
		t.Errorf("EncodeGeohash = %q, want u4pruydqqvj", got)
	}
	// Truncation property: shorter precision is a prefix.
	full := EncodeGeohash(41.0082, 28.9784, 8)
	short := EncodeGeohash(41.0082, 28.9784, 5)
	if full[:5] != short {
		t.Errorf("precision 5 hash %q is not a prefix of %q", short, full)
	}
}
