package wire

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/run"
	"github.com/Agrid-Dev/thermoptim/internal/thermal"
	"github.com/Agrid-Dev/thermoptim/internal/training"
)

func TestNum(t *testing.T) {
	assert.Nil(t, Num(math.NaN()))
	assert.Nil(t, Num(math.Inf(1)))
	require.NotNil(t, Num(1.5))
	assert.Equal(t, 1.5, *Num(1.5))

	got := Nums([]float64{1, math.NaN()})
	require.Len(t, got, 2)
	assert.Nil(t, got[1])
}

func TestFromSnapshot_NaNBecomesNull(t *testing.T) {
	s := run.Snapshot{
		ID: "x",
		Metrics: training.Metrics{
			CVMAE:    math.NaN(),
			MAE:      0.5,
			R2:       math.NaN(),
			Duration: 1500 * time.Millisecond,
		},
	}
	b, err := json.Marshal(FromSnapshot(s))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	m := got["metrics"].(map[string]any)
	assert.Nil(t, m["cv_mae"])
	assert.Equal(t, 0.5, m["mae"])
	assert.Nil(t, m["r2"])
	assert.Equal(t, float64(1500), m["duration_ms"])
	assert.Equal(t, "x", got["run_id"])
}

func TestDecodeSample(t *testing.T) {
	body := `{"value":{"timestamp":"2024-07-01T14:00:00Z","outdoor_temp_c":30,"humidity_pct":55,
		"occupancy":"yes","user_pref_temp_c":22,"indoor_temp_before_c":21}}`
	s, err := DecodeSample(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, dataset.Sample{
		Timestamp:        time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC),
		OutdoorTemp:      30,
		Humidity:         55,
		Occupancy:        thermal.Occupied,
		UserPrefTemp:     22,
		IndoorTempBefore: 21,
	}, s)

	s, err = DecodeSampleBytes([]byte(`{"value":{"outdoor_temp_c":30,"humidity_pct":55,
		"occupancy":0,"user_pref_temp_c":22,"indoor_temp_before_c":21}}`))
	require.NoError(t, err)
	assert.True(t, s.Timestamp.IsZero())
	assert.Equal(t, thermal.Vacant, s.Occupancy)
}

func TestDecodeSample_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"missing value", `{}`, ErrMissingField},
		{"null value", `{"value":null}`, ErrMissingField},
		{"missing occupancy", `{"value":{"outdoor_temp_c":30,"humidity_pct":55,"user_pref_temp_c":22,"indoor_temp_before_c":21}}`, ErrMissingField},
		{"missing humidity", `{"value":{"outdoor_temp_c":30,"occupancy":1,"user_pref_temp_c":22,"indoor_temp_before_c":21}}`, ErrMissingField},
		{"bad occupancy", `{"value":{"outdoor_temp_c":30,"humidity_pct":55,"occupancy":"maybe","user_pref_temp_c":22,"indoor_temp_before_c":21}}`, thermal.ErrInvalidOccupancy},
		{"unknown field", `{"value":{"outdoor_temp_c":30},"extra":1}`, nil},
		{"invalid json", `{"value":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSample(strings.NewReader(tt.body))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestFromRecommendation(t *testing.T) {
	r := FromRecommendation(run.Recommendation{
		Setpoint: 21,
		Energy:   dataset.EnergyReading{BeforeKWh: 2, AfterKWh: 1, SavingsKWh: 1, SavingsPct: math.NaN()},
	})
	assert.Equal(t, 21.0, r.Setpoint)
	assert.Nil(t, r.SavingsPct)
}
