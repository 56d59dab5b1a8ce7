// Package features turns samples into the numeric vectors the estimators
// consume. Statistics come from the partition passed to Fit and nothing else.
package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/thermal"
)

var ErrInsufficientData = errors.New("insufficient data")

// Feature names in output order.
const (
	OutdoorTempZ  = "outdoor_temp_z"
	HumidityZ     = "humidity_z"
	UserPrefTempZ = "user_pref_temp_z"
	HourSin       = "hour_sin"
	HourCos       = "hour_cos"
	Occupancy     = "occupancy"
)

// Schema is the layout of every vector returned by Transform.
var Schema = dataset.Schema{
	{Name: OutdoorTempZ, Kind: dataset.KindFloat},
	{Name: HumidityZ, Kind: dataset.KindFloat},
	{Name: UserPrefTempZ, Kind: dataset.KindFloat},
	{Name: HourSin, Kind: dataset.KindFloat},
	{Name: HourCos, Kind: dataset.KindFloat},
	{Name: Occupancy, Kind: dataset.KindCategory},
}

const minStd = 1e-10

// Scaler holds z-score parameters for one continuous column.
type Scaler struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func (s Scaler) Apply(v float64) float64 {
	if math.IsNaN(v) {
		v = s.Mean
	}
	return (v - s.Mean) / s.Std
}

// State is the fitted transformer. It has no mutating methods.
type State struct {
	OutdoorTemp   Scaler            `json:"outdoor_temp"`
	Humidity      Scaler            `json:"humidity"`
	UserPrefTemp  Scaler            `json:"user_pref_temp"`
	HourSinMean   float64           `json:"hour_sin_mean"`
	HourCosMean   float64           `json:"hour_cos_mean"`
	OccupancyMode thermal.Occupancy `json:"occupancy_mode"`
	Rows          int               `json:"rows"`
}

// Fit computes the transformer state from d. Missing values are ignored for
// the statistics and later filled with them.
func Fit(d dataset.Dataset) (State, error) {
	if d.Len() == 0 {
		return State{}, fmt.Errorf("%w: cannot fit on an empty partition", ErrInsufficientData)
	}
	st := State{Rows: d.Len()}

	var err error
	if st.OutdoorTemp, err = fitScaler(d, dataset.ColOutdoorTemp); err != nil {
		return State{}, err
	}
	if st.Humidity, err = fitScaler(d, dataset.ColHumidity); err != nil {
		return State{}, err
	}
	if st.UserPrefTemp, err = fitScaler(d, dataset.ColUserPrefTemp); err != nil {
		return State{}, err
	}

	var sins, coss []float64
	var occupied, vacant int
	for i := range d.Len() {
		s := d.At(i).Sample
		if !s.Timestamp.IsZero() {
			sn, cs := EncodeHour(s.Timestamp)
			sins = append(sins, sn)
			coss = append(coss, cs)
		}
		switch s.Occupancy {
		case thermal.Occupied:
			occupied++
		case thermal.Vacant:
			vacant++
		}
	}
	if len(sins) > 0 {
		st.HourSinMean = stat.Mean(sins, nil)
		st.HourCosMean = stat.Mean(coss, nil)
	}
	st.OccupancyMode = thermal.Occupied
	if vacant > occupied {
		st.OccupancyMode = thermal.Vacant
	}
	return st, nil
}

func fitScaler(d dataset.Dataset, col string) (Scaler, error) {
	all, err := d.Column(col)
	if err != nil {
		return Scaler{}, err
	}
	present := make([]float64, 0, len(all))
	for _, v := range all {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return Scaler{}, fmt.Errorf("%w: column %s has no values", ErrInsufficientData, col)
	}
	mean, std := stat.PopMeanStdDev(present, nil)
	if std < minStd || math.IsNaN(std) {
		std = 1
	}
	return Scaler{Mean: mean, Std: std}, nil
}

// Schema returns the output layout.
func (st State) Schema() dataset.Schema { return Schema }

// Transform encodes one sample. The result always has len(Schema) entries.
func (st State) Transform(s dataset.Sample) []float64 {
	sn, cs := st.HourSinMean, st.HourCosMean
	if !s.Timestamp.IsZero() {
		sn, cs = EncodeHour(s.Timestamp)
	}
	occ := s.Occupancy
	if !occ.Valid() {
		occ = st.OccupancyMode
	}
	return []float64{
		st.OutdoorTemp.Apply(s.OutdoorTemp),
		st.Humidity.Apply(s.Humidity),
		st.UserPrefTemp.Apply(s.UserPrefTemp),
		sn,
		cs,
		occ.Float(),
	}
}

// TransformAll encodes every record of d in order.
func (st State) TransformAll(d dataset.Dataset) [][]float64 {
	out := make([][]float64, d.Len())
	for i := range d.Len() {
		out[i] = st.Transform(d.At(i).Sample)
	}
	return out
}

// EncodeHour maps the time of day onto the unit circle.
func EncodeHour(ts time.Time) (sin, cos float64) {
	h := float64(ts.Hour()) + float64(ts.Minute())/60 + float64(ts.Second())/3600
	a := 2 * math.Pi * h / 24
	return math.Sin(a), math.Cos(a)
}

// HourAngle inverts EncodeHour, returning an hour in [0, 24).
func HourAngle(sin, cos float64) float64 {
	h := math.Atan2(sin, cos) * 24 / (2 * math.Pi)
	if h < 0 {
		h += 24
	}
	return h
}
