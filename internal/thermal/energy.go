package thermal

import (
	"fmt"
	"math"
)

const (
	// DefaultCoefficient is the conductivity term applied to |indoor-outdoor|.
	DefaultCoefficient = 0.5
	// MinEnergyKWh is the floor applied to every estimate.
	MinEnergyKWh = 0.5

	humidityFactor  = 0.05
	humidityNeutral = 50.0
	occupancyLoad   = 0.3
)

type EnergyModel struct {
	Coefficient float64 // >= 0, 0 for a building with no envelope loss.
}

func DefaultEnergyModel() EnergyModel {
	return EnergyModel{Coefficient: DefaultCoefficient}
}

func (m EnergyModel) Validate() error {
	if m.Coefficient < 0 || !isFinite(m.Coefficient) {
		return ErrNegativeCoefficient
	}
	return nil
}

// Estimate returns the consumption in kWh for holding indoor against outdoor.
func (m EnergyModel) Estimate(indoor, outdoor, humidity float64, occupancy Occupancy) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if err := checkFinite(input{"indoor", indoor}, input{"outdoor", outdoor}, input{"humidity", humidity}); err != nil {
		return 0, err
	}
	if !occupancy.Valid() {
		return 0, fmt.Errorf("%w: occupancy %d", ErrInvalidInput, int(occupancy))
	}
	e := m.Coefficient*math.Abs(indoor-outdoor) +
		humidityFactor*(humidity-humidityNeutral) +
		occupancyLoad*occupancy.Float()
	return math.Max(e, MinEnergyKWh), nil
}

// EstimateEnergy runs the default model.
func EstimateEnergy(indoor, outdoor, humidity float64, occupancy Occupancy) (float64, error) {
	return DefaultEnergyModel().Estimate(indoor, outdoor, humidity, occupancy)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type input struct {
	name  string
	value float64
}

func checkFinite(in ...input) error {
	for _, v := range in {
		if !isFinite(v.value) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidInput, v.name, v.value)
		}
	}
	return nil
}
