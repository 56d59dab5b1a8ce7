// Package run holds the result of one pipeline execution and answers the
// read-only questions the controllers ask about it.
package run

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/report"
	"github.com/Agrid-Dev/thermoptim/internal/thermal"
	"github.com/Agrid-Dev/thermoptim/internal/training"
)

var ErrIncomplete = errors.New("run is missing its model or report")

// Snapshot is a copy of the run summary. Served counts the recommendations
// answered since the run was created.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Metrics   training.Metrics
	Report    report.SavingsReport
	Served    uint64
}

// Recommendation is the setpoint proposed for one sample and its consumption
// relative to the observed indoor temperature.
type Recommendation struct {
	Setpoint float64
	Energy   dataset.EnergyReading
}

type Run struct {
	id        uuid.UUID
	createdAt time.Time
	model     *training.Model
	energy    thermal.EnergyModel
	metrics   training.Metrics
	report    report.SavingsReport
	data      dataset.Dataset

	mu     sync.RWMutex
	served uint64
}

// Result is everything a finished pipeline hands over.
type Result struct {
	Model   *training.Model
	Energy  thermal.EnergyModel
	Metrics training.Metrics
	Report  *report.SavingsReport
	Data    dataset.Dataset
}

// New wraps res under id. A nil id draws a fresh random one.
func New(id uuid.UUID, res Result) (*Run, error) {
	if res.Model == nil || res.Report == nil {
		return nil, ErrIncomplete
	}
	if err := res.Energy.Validate(); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Run{
		id:        id,
		createdAt: time.Now().UTC(),
		model:     res.Model,
		energy:    res.Energy,
		metrics:   res.Metrics,
		report:    *res.Report,
		data:      res.Data,
	}, nil
}

// ParseID accepts an empty string (meaning "generate one") or a UUID.
func ParseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func (r *Run) ID() uuid.UUID                { return r.id }
func (r *Run) CreatedAt() time.Time         { return r.createdAt }
func (r *Run) Model() *training.Model       { return r.model }
func (r *Run) Dataset() dataset.Dataset     { return r.data }
func (r *Run) Report() report.SavingsReport { return r.report }
func (r *Run) Metrics() training.Metrics    { return r.metrics }

func (r *Run) Get() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		ID:        r.id.String(),
		CreatedAt: r.createdAt,
		Metrics:   r.metrics,
		Report:    r.report,
		Served:    r.served,
	}
}

// Predict recommends a setpoint for s and prices it with the run's energy
// model. Samples are clipped to the physical bounds first.
func (r *Run) Predict(s dataset.Sample) (Recommendation, error) {
	s = s.Clipped()
	setpoint, err := r.model.Predict(s)
	if err != nil {
		return Recommendation{}, err
	}
	er, err := report.Reading(r.energy, s, setpoint)
	if err != nil {
		return Recommendation{}, err
	}
	r.mu.Lock()
	r.served++
	r.mu.Unlock()
	return Recommendation{Setpoint: setpoint, Energy: er}, nil
}

func (r *Run) Columns() []string {
	return r.data.Columns()
}

func (r *Run) Column(name string) ([]float64, error) {
	return r.data.Column(name)
}
