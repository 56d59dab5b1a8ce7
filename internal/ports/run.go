package ports

import (
	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/run"
)

// RunService is the read-only port used by controllers (HTTP/MQTT/Modbus).
type RunService interface {
	Get() run.Snapshot
	Predict(dataset.Sample) (run.Recommendation, error)
	Columns() []string
	Column(name string) ([]float64, error)
}

var _ RunService = (*run.Run)(nil)
