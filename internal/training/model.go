package training

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/features"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
	"github.com/Agrid-Dev/thermoptim/internal/thermal"
)

// Model is a fitted transformer plus estimator. It is not modified after
// Train returns and predicting from it has no side effects.
type Model struct {
	estimator regress.Regressor
	features  features.State
	schema    dataset.Schema
	params    regress.Params
	bounds    thermal.Bounds
}

func newModel(est regress.Regressor, st features.State, p regress.Params) *Model {
	return &Model{
		estimator: est,
		features:  st,
		schema:    st.Schema(),
		params:    p,
		bounds:    thermal.ComfortBounds,
	}
}

func (m *Model) Kind() regress.Kind            { return m.estimator.Kind() }
func (m *Model) Params() regress.Params        { return m.params }
func (m *Model) Features() features.State      { return m.features }
func (m *Model) FeatureSchema() dataset.Schema { return m.schema }
func (m *Model) Estimator() regress.Regressor  { return m.estimator }

// Predict returns the recommended setpoint for s, clipped to comfort bounds.
func (m *Model) Predict(s dataset.Sample) (float64, error) {
	return m.PredictVector(m.schema, m.features.Transform(s))
}

// PredictVector predicts from an already encoded vector. The vector's schema
// must be the one the model was trained with.
func (m *Model) PredictVector(schema dataset.Schema, x []float64) (float64, error) {
	if err := m.schema.Require(schema); err != nil {
		return 0, err
	}
	if len(x) != len(m.schema) || len(x) != m.estimator.NumFeatures() {
		return 0, fmt.Errorf("%w: vector has %d features, model expects %d", dataset.ErrSchema, len(x), m.estimator.NumFeatures())
	}
	v := m.estimator.Predict(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite prediction", ErrTrainingFailed)
	}
	return m.bounds.Clip(v), nil
}

func (m *Model) predictAll(d dataset.Dataset) ([]float64, error) {
	out := make([]float64, d.Len())
	for i := range d.Len() {
		v, err := m.Predict(d.At(i).Sample)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// PredictDataset returns d with a prediction attached to every record.
func (m *Model) PredictDataset(d dataset.Dataset) (dataset.Dataset, error) {
	pred, err := m.predictAll(d)
	if err != nil {
		return dataset.Dataset{}, err
	}
	return d.WithPredictions(pred)
}

const modelVersion = 1

type savedModel struct {
	Version   int             `json:"version"`
	Schema    []string        `json:"feature_schema"`
	Features  features.State  `json:"features"`
	Params    regress.Params  `json:"params"`
	Bounds    [2]float64      `json:"bounds"`
	Estimator json.RawMessage `json:"estimator"`
}

// Save writes the model as JSON.
func (m *Model) Save(w io.Writer) error {
	est, err := regress.Marshal(m.estimator)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(savedModel{
		Version:   modelVersion,
		Schema:    m.schema.Names(),
		Features:  m.features,
		Params:    m.params,
		Bounds:    [2]float64{m.bounds.Min, m.bounds.Max},
		Estimator: est,
	})
}

func (m *Model) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return m.Save(f)
}

// LoadModel reads a model written by Save.
func LoadModel(r io.Reader) (*Model, error) {
	var sm savedModel
	if err := json.NewDecoder(r).Decode(&sm); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if sm.Version != modelVersion {
		return nil, fmt.Errorf("unsupported model version %d", sm.Version)
	}
	if !slices.Equal(sm.Schema, features.Schema.Names()) {
		return nil, fmt.Errorf("%w: model features %v, transformer produces %v", dataset.ErrSchema, sm.Schema, features.Schema.Names())
	}
	est, err := regress.Unmarshal(sm.Estimator)
	if err != nil {
		return nil, err
	}
	if est.NumFeatures() != len(sm.Schema) {
		return nil, fmt.Errorf("%w: estimator has %d features, schema %d", dataset.ErrSchema, est.NumFeatures(), len(sm.Schema))
	}
	b := thermal.Bounds{Min: sm.Bounds[0], Max: sm.Bounds[1]}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	m := newModel(est, sm.Features, sm.Params)
	m.bounds = b
	return m, nil
}

func LoadModelFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadModel(f)
}
