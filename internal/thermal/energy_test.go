package thermal

import (
	"errors"
	"math"
	"testing"
)

func assertError(t *testing.T, err error, expected error) {
	t.Helper()
	if !errors.Is(err, expected) {
		t.Fatalf("expected %v, got %v", expected, err)
	}
}

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestEnergyModelValidate(t *testing.T) {
	tests := []struct {
		name  string
		model EnergyModel
		want  error
	}{
		{"default", DefaultEnergyModel(), nil},
		{"zero coefficient", EnergyModel{Coefficient: 0}, nil},
		{"negative coefficient", EnergyModel{Coefficient: -0.1}, ErrNegativeCoefficient},
		{"nan coefficient", EnergyModel{Coefficient: math.NaN()}, ErrNegativeCoefficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.model.Validate(); err != tt.want {
				t.Fatalf("Validate()=%v want %v", err, tt.want)
			}
		})
	}
}

func TestEstimateEnergy(t *testing.T) {
	tests := []struct {
		name                      string
		indoor, outdoor, humidity float64
		occupancy                 Occupancy
		want                      float64
	}{
		{"equal temperatures hit the floor", 20, 20, 50, Vacant, 0.5},
		{"dry air lowers load below floor", 21, 20, 30, Vacant, 0.5},
		{"difference and occupancy", 22, 30, 60, Occupied, 0.5*8 + 0.05*10 + 0.3},
		{"cooler outside", 24, 10, 50, Vacant, 7},
		{"no upper cap", 30, 5, 80, Occupied, 0.5*25 + 0.05*30 + 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EstimateEnergy(tt.indoor, tt.outdoor, tt.humidity, tt.occupancy)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(got, tt.want, 1e-12) {
				t.Fatalf("EstimateEnergy=%v want %v", got, tt.want)
			}
		})
	}
}

func TestEstimateEnergy_MonotoneInDifference(t *testing.T) {
	prev := 0.0
	for d := 0.0; d <= 20; d += 0.25 {
		got, err := EstimateEnergy(20+d, 20, 45, Occupied)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got < prev || got < MinEnergyKWh {
			t.Fatalf("difference %v: energy %v after %v", d, got, prev)
		}
		prev = got
	}
}

func TestEstimateEnergy_InvalidInput(t *testing.T) {
	tests := []struct {
		name                      string
		indoor, outdoor, humidity float64
		occupancy                 Occupancy
	}{
		{"nan indoor", math.NaN(), 20, 50, Vacant},
		{"inf outdoor", 20, math.Inf(1), 50, Vacant},
		{"-inf humidity", 20, 20, math.Inf(-1), Vacant},
		{"missing occupancy", 20, 20, 50, OccupancyMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EstimateEnergy(tt.indoor, tt.outdoor, tt.humidity, tt.occupancy)
			assertError(t, err, ErrInvalidInput)
		})
	}
}

func TestEstimate_RejectsNegativeCoefficient(t *testing.T) {
	_, err := EnergyModel{Coefficient: -1}.Estimate(20, 20, 50, Vacant)
	assertError(t, err, ErrNegativeCoefficient)
}
