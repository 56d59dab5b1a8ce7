package thermal

import (
	"math"
	"testing"
)

func TestOptimalTemperature(t *testing.T) {
	tests := []struct {
		name      string
		occupancy Occupancy
		outdoor   float64
		pref      float64
		want      float64
	}{
		{"vacant relaxes by two degrees", Vacant, 18, 22, 24},
		{"occupied at reference outdoor", Occupied, 25, 21, 21},
		{"occupied hot day", Occupied, 40, 22, 20.5},
		{"occupied cold day", Occupied, 5, 22, 24},
		{"clipped low", Occupied, 90, 18, ComfortMin},
		{"clipped high", Vacant, 20, 25, 26},
		{"clipped high occupied", Occupied, -30, 25, ComfortMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OptimalTemperature(tt.occupancy, tt.outdoor, tt.pref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(got, tt.want, 1e-12) {
				t.Fatalf("OptimalTemperature=%v want %v", got, tt.want)
			}
		})
	}
}

func TestOptimalTemperature_AlwaysWithinComfort(t *testing.T) {
	for outdoor := -20.0; outdoor <= 60; outdoor += 2.5 {
		for pref := 10.0; pref <= 30; pref += 0.5 {
			for _, occ := range []Occupancy{Vacant, Occupied} {
				got, err := OptimalTemperature(occ, outdoor, pref)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !ComfortBounds.Contains(got) {
					t.Fatalf("got %v for occ=%v outdoor=%v pref=%v", got, occ, outdoor, pref)
				}
			}
		}
	}
}

func TestOptimalTemperature_InvalidInput(t *testing.T) {
	_, err := OptimalTemperature(Occupied, math.NaN(), 21)
	assertError(t, err, ErrInvalidInput)

	_, err = OptimalTemperature(OccupancyMissing, 20, 21)
	assertError(t, err, ErrInvalidInput)
}

func TestBounds(t *testing.T) {
	b := Bounds{Min: 18, Max: 26}
	if err := b.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "clip below", b.Clip(-3), 18.0)
	assertEqual(t, "clip above", b.Clip(40), 26.0)
	assertEqual(t, "inside", b.Clip(21.5), 21.5)

	assertError(t, Bounds{Min: 26, Max: 18}.Validate(), ErrInvalidMinMax)
	assertError(t, Bounds{Min: math.NaN(), Max: 18}.Validate(), ErrInvalidMinMax)
}
