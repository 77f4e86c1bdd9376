package geo

import (
	"math"
	"testing"
)

func TestGreatCircleDistanceKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 51.5074, -0.1278, 51.5074, -0.1278, 0, 0},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 344, 2},
		{"quarter meridian", 0, 0, 90, 0, EarthRadiusKm * math.Pi / 2, 1e-6},
		{"antipodal", 0, 0, 0, 180, EarthRadiusKm * math.Pi, 1e-6},
		{"one degree of longitude on equator", 0, 0, 0, 1, 111.19, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GreatCircleDistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.IsNaN(got) {
				t.Fatalf("distance is NaN")
			}
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("distance = %v, want %v ± %v", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestGreatCircleDistanceKm_Symmetric(t *testing.T) {
	a := GreatCircleDistanceKm(57.1497, -2.0943, 51.5074, -0.1278)
	b := GreatCircleDistanceKm(51.5074, -0.1278, 57.1497, -2.0943)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("a->b = %v, b->a = %v", a, b)
	}
}

func TestGreatCircleDistanceKm_NearlyIdenticalPoints(t *testing.T) {
	// 相距极近时 acos 参数可能越过 1
	got := GreatCircleDistanceKm(51.5074, -0.1278, 51.5074, -0.12780000001)
	if math.IsNaN(got) || got < 0 || got > 0.001 {
		t.Errorf("distance = %v, want small non-negative value", got)
	}
}
