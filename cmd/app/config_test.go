package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agrid-Dev/thermoptim/internal/regress"
	"github.com/Agrid-Dev/thermoptim/internal/training"
)

func TestEnvKeyTransform_TopLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RUN_ID", "run_id"},
		{"SERVE", "serve"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		got := envKeyTransform(tt.in)
		if got != tt.want {
			t.Fatalf("envKeyTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvKeyTransform_Controllers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CONTROLLERS_HTTP_ADDR", "controllers.http.addr"},
		{"CONTROLLERS_MQTT_PUBLISH_INTERVAL", "controllers.mqtt.publish_interval"},
		{"CONTROLLERS_MODBUS_UNIT_ID", "controllers.modbus.unit_id"},
		{"CONTROLLERS_HTTP", "controllers_http"},   // not enough parts -> fallback
		{"CONTROLLERS__ADDR", "controllers..addr"}, // edge case
		{"controllers_HTTP_addr", "controllers.http.addr"},
	}

	for _, tt := range tests {
		got := envKeyTransform(tt.in)
		if got != tt.want {
			t.Fatalf("envKeyTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvKeyTransform_Sections(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TRAINING_PARAMS_MAX_DEPTH", "training.params.max_depth"},
		{"TRAINING_GRID_LEARNING_RATE", "training.grid.learning_rate"},
		{"TRAINING_TEST_FRACTION", "training.test_fraction"},
		{"DATA_PATH", "data.path"},
		{"ENERGY_COEFFICIENT", "energy.coefficient"},
		{"OUTPUT_REPORT_YAML", "output.report_yaml"},
		{"STORE_MAX_CONNECTIONS", "store.max_connections"},
		{"LOG_LEVEL", "log.level"},
		{"TRAINING", "training"}, // not enough parts -> passthrough
		{"TRAINING_", "training_"},
	}

	for _, tt := range tests {
		got := envKeyTransform(tt.in)
		if got != tt.want {
			t.Fatalf("envKeyTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.Log, cfg.Log)
	assert.Equal(t, def.Data, cfg.Data)
	assert.Equal(t, def.Output, cfg.Output)
	assert.Equal(t, def.Controllers.HTTP, cfg.Controllers.HTTP)
	assert.Equal(t, def.Controllers.MQTT.PublishInterval, cfg.Controllers.MQTT.PublishInterval)
	assert.Equal(t, def.Training.Params, cfg.Training.Params)
	assert.Equal(t, def.Training.Grid.NEstimators, cfg.Training.Grid.NEstimators)
	assert.Empty(t, cfg.Training.Grid.MinSamplesLeaf)
	require.NoError(t, cfg.Validate())

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	tc := training.DefaultConfig()
	assert.Equal(t, tc.Estimator, pc.Training.Estimator)
	assert.Equal(t, tc.Split, pc.Training.Split)
	assert.Equal(t, tc.Params, pc.Training.Params)
	assert.Equal(t, tc.Folds, pc.Training.Folds)
	assert.Equal(t, 1000, pc.Synth.N)
	assert.Equal(t, time.Hour, pc.Synth.Step)
}

func TestLoadConfig_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
data:
  samples: 250
training:
  estimator: linear
  split: chronological
  params:
    alpha: 0.5
  search: true
  grid:
    alpha: [0.1, 1]
  deadline: 30s
controllers:
  mqtt:
    enabled: true
    site: hq
    publish_interval: 2s
`), 0o644))

	t.Setenv("THERMOPTIM_DATA_SAMPLES", "300")
	t.Setenv("THERMOPTIM_TRAINING_PARAMS_MAX_DEPTH", "4")
	t.Setenv("THERMOPTIM_CONTROLLERS_HTTP_ADDR", ":9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "default kept")
	assert.Equal(t, 300, cfg.Data.Samples, "env wins over file")
	assert.Equal(t, 4, cfg.Training.Params.MaxDepth)
	assert.Equal(t, 0.5, cfg.Training.Params.Alpha)
	assert.Equal(t, []float64{0.1, 1}, cfg.Training.Grid.Alpha)
	assert.Equal(t, 30*time.Second, cfg.Training.Deadline)
	assert.Equal(t, ":9090", cfg.Controllers.HTTP.Addr)
	assert.True(t, cfg.Controllers.MQTT.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Controllers.MQTT.PublishInterval)
	require.NoError(t, cfg.Validate())

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, regress.KindLinear, pc.Training.Estimator)
	assert.Equal(t, training.SplitChronological, pc.Training.Split)
	assert.True(t, pc.Training.Search)

	m := cfg.MQTT()
	assert.Equal(t, "hq", m.Site)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run_id":"6f1c2c0e-8a51-4a3b-9f4e-1d2c3b4a5f60","energy":{"coefficient":0.8}}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Energy.Coefficient)
	assert.Equal(t, "6f1c2c0e-8a51-4a3b-9f4e-1d2c3b4a5f60", cfg.RunID)
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unsupported config extension")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad run id", func(c *Config) { c.RunID = "nope" }, "run_id"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative samples", func(c *Config) { c.Data.Samples = -1 }, "data.samples"},
		{"negative coefficient", func(c *Config) { c.Energy.Coefficient = -1 }, "energy.coefficient"},
		{"bad estimator", func(c *Config) { c.Training.Estimator = "forest" }, "training.estimator"},
		{"bad split", func(c *Config) { c.Training.Split = "random" }, "training.split"},
		{"bad start", func(c *Config) { c.Data.Start = "yesterday" }, "data.start"},
		{"bad fraction", func(c *Config) { c.Training.TestFraction = 0 }, "test fraction"},
		{"store without target", func(c *Config) {
			c.Store.Enabled = true
			c.Store.Host = ""
		}, "store"},
		{"serve without controllers", func(c *Config) {
			c.Serve = true
			c.Controllers.HTTP.Enabled = false
		}, "no controller enabled"},
		{"modbus unit id", func(c *Config) {
			c.Serve = true
			c.Controllers.MODBUS.Enabled = true
			c.Controllers.MODBUS.UnitID = 0
		}, "unit_id"},
		{"mqtt qos", func(c *Config) {
			c.Serve = true
			c.Controllers.MQTT.Enabled = true
			c.Controllers.MQTT.QoS = 2
		}, "qos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.DSN = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.StoreConfig().ConnString())
	assert.Equal(t, "out/report.yaml", cfg.Outputs().ReportYAML)
	assert.Equal(t, byte(1), cfg.Modbus().UnitID)
}
