package dataset

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/Agrid-Dev/thermoptim/internal/thermal"
)

// DefaultStart is the timestamp of the first synthesized sample.
var DefaultStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

const DefaultStep = time.Hour

// Generator distributions.
const (
	outdoorMean  = 18.0
	outdoorStd   = 5.0
	occupiedProb = 0.6
	prefMean     = 21.5
	prefStd      = 2.0
	indoorMean   = 22.0
	indoorStd    = 3.0
)

var ErrInvalidSampleCount = errors.New("sample count must be >= 0")

type SynthConfig struct {
	Seed  uint64
	N     int
	Start time.Time
	Step  time.Duration
}

func DefaultSynthConfig(seed uint64, n int) SynthConfig {
	return SynthConfig{Seed: seed, N: n, Start: DefaultStart, Step: DefaultStep}
}

// Generate synthesizes n hourly samples starting at DefaultStart.
func Generate(seed uint64, n int) (Dataset, error) {
	return Synthesize(DefaultSynthConfig(seed, n))
}

// Synthesize draws cfg.N independent samples. Fields are drawn in a fixed
// order per sample so the same seed always yields the same dataset.
func Synthesize(cfg SynthConfig) (Dataset, error) {
	if cfg.N < 0 {
		return Dataset{}, ErrInvalidSampleCount
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultStart
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	samples := make([]Sample, cfg.N)
	for i := range samples {
		s := Sample{Timestamp: cfg.Start.Add(time.Duration(i) * cfg.Step)}
		s.OutdoorTemp = outdoorMean + outdoorStd*rng.NormFloat64()
		s.Humidity = HumidityBounds.Min + (HumidityBounds.Max-HumidityBounds.Min)*rng.Float64()
		s.Occupancy = thermal.Vacant
		if rng.Float64() < occupiedProb {
			s.Occupancy = thermal.Occupied
		}
		s.UserPrefTemp = prefMean + prefStd*rng.NormFloat64()
		s.IndoorTempBefore = indoorMean + indoorStd*rng.NormFloat64()
		samples[i] = s.Clipped()
	}
	return FromSamples(samples), nil
}
