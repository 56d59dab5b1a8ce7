package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	mqttctrl "github.com/Agrid-Dev/thermoptim/internal/controllers/mqtt"
	modbusctrl "github.com/Agrid-Dev/thermoptim/internal/controllers/modbus"
	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/pipeline"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
	"github.com/Agrid-Dev/thermoptim/internal/run"
	"github.com/Agrid-Dev/thermoptim/internal/store"
	"github.com/Agrid-Dev/thermoptim/internal/thermal"
	"github.com/Agrid-Dev/thermoptim/internal/training"
)

// EnvPrefix marks the environment variables read by LoadConfig.
const EnvPrefix = "THERMOPTIM_"

type Config struct {
	RunID string `koanf:"run_id"`
	Serve bool   `koanf:"serve"`

	Log      LogConfig      `koanf:"log"`
	Data     DataConfig     `koanf:"data"`
	Energy   EnergyConfig   `koanf:"energy"`
	Training TrainingConfig `koanf:"training"`
	Output   OutputConfig   `koanf:"output"`
	Store    StoreConfig    `koanf:"store"`

	Controllers struct {
		HTTP   HTTPConfig   `koanf:"http"`
		MQTT   MQTTConfig   `koanf:"mqtt"`
		MODBUS ModbusConfig `koanf:"modbus"`
	} `koanf:"controllers"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" | "text"
}

// DataConfig selects the input. An empty Path synthesizes Samples records.
type DataConfig struct {
	Path    string        `koanf:"path"`
	Seed    uint64        `koanf:"seed"`
	Samples int           `koanf:"samples"`
	Start   string        `koanf:"start"` // RFC3339
	Step    time.Duration `koanf:"step"`
}

type EnergyConfig struct {
	Coefficient float64 `koanf:"coefficient"`
}

type ParamsConfig struct {
	Alpha          float64 `koanf:"alpha"`
	NEstimators    int     `koanf:"n_estimators"`
	LearningRate   float64 `koanf:"learning_rate"`
	MaxDepth       int     `koanf:"max_depth"`
	MinSamplesLeaf int     `koanf:"min_samples_leaf"`
}

type GridConfig struct {
	NEstimators    []int     `koanf:"n_estimators"`
	LearningRate   []float64 `koanf:"learning_rate"`
	MaxDepth       []int     `koanf:"max_depth"`
	MinSamplesLeaf []int     `koanf:"min_samples_leaf"`
	Alpha          []float64 `koanf:"alpha"`
}

type TrainingConfig struct {
	Seed         uint64        `koanf:"seed"`
	TestFraction float64       `koanf:"test_fraction"`
	Split        string        `koanf:"split"`     // "shuffle" | "chronological"
	Estimator    string        `koanf:"estimator"` // "gbm" | "linear"
	Params       ParamsConfig  `koanf:"params"`
	Search       bool          `koanf:"search"`
	Grid         GridConfig    `koanf:"grid"`
	Folds        int           `koanf:"folds"`
	Workers      int           `koanf:"workers"`
	Deadline     time.Duration `koanf:"deadline"`
}

type OutputConfig struct {
	DatasetCSV string `koanf:"dataset_csv"`
	ReportYAML string `koanf:"report_yaml"`
	ModelJSON  string `koanf:"model_json"`
}

type StoreConfig struct {
	Enabled        bool   `koanf:"enabled"`
	DSN            string `koanf:"dsn"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	Name           string `koanf:"name"`
	User           string `koanf:"user"`
	Password       string `koanf:"password"`
	SSLMode        string `koanf:"sslmode"`
	MaxConnections int    `koanf:"max_connections"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Site            string        `koanf:"site"`
	BrokerURL       string        `koanf:"broker_url"`
	ClientID        string        `koanf:"client_id"`
	BaseTopic       string        `koanf:"base_topic"`
	QoS             byte          `koanf:"qos"`
	RetainSummary   bool          `koanf:"retain_summary"`
	PublishInterval time.Duration `koanf:"publish_interval"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	UnitID  byte   `koanf:"unit_id"`
}

func DefaultConfig() Config {
	tc := training.DefaultConfig()
	p := tc.Params
	g := tc.Grid

	cfg := Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Data: DataConfig{
			Seed:    42,
			Samples: 1000,
			Start:   dataset.DefaultStart.Format(time.RFC3339),
			Step:    dataset.DefaultStep,
		},
		Energy: EnergyConfig{Coefficient: thermal.DefaultCoefficient},
		Training: TrainingConfig{
			Seed:         tc.Seed,
			TestFraction: tc.TestFraction,
			Split:        tc.Split.String(),
			Estimator:    tc.Estimator.String(),
			Params: ParamsConfig{
				Alpha:          p.Alpha,
				NEstimators:    p.NEstimators,
				LearningRate:   p.LearningRate,
				MaxDepth:       p.MaxDepth,
				MinSamplesLeaf: p.MinSamplesLeaf,
			},
			Grid: GridConfig{
				NEstimators:    g.NEstimators,
				LearningRate:   g.LearningRate,
				MaxDepth:       g.MaxDepth,
				MinSamplesLeaf: g.MinSamplesLeaf,
				Alpha:          g.Alpha,
			},
			Folds: tc.Folds,
		},
		Output: OutputConfig{
			DatasetCSV: "out/dataset.csv",
			ReportYAML: "out/report.yaml",
			ModelJSON:  "out/model.json",
		},
		Store: StoreConfig{Host: "localhost", Port: 5432, Name: "thermoptim", User: "postgres", MaxConnections: 4},
	}
	cfg.Controllers.HTTP = HTTPConfig{Enabled: true, Addr: ":8080"}
	cfg.Controllers.MQTT = MQTTConfig{
		Site:            "default",
		BrokerURL:       "tcp://localhost:1883",
		PublishInterval: 5 * time.Second,
	}
	cfg.Controllers.MODBUS = ModbusConfig{Addr: "127.0.0.1:1502", UnitID: 1}
	return cfg
}

// LoadConfig layers defaults, the optional file at path (YAML or JSON by
// extension, a missing file keeps defaults) and THERMOPTIM_* variables.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			// Config file missing → use defaults
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Sections whose keys gain a dot after the prefix, longest first so that
// training_params_ wins over training_.
var envSections = []struct{ prefix, path string }{
	{"training_params_", "training.params."},
	{"training_grid_", "training.grid."},
	{"training_", "training."},
	{"energy_", "energy."},
	{"output_", "output."},
	{"store_", "store."},
	{"data_", "data."},
	{"log_", "log."},
}

// envKeyTransform maps an unprefixed variable name to a koanf path:
// CONTROLLERS_MQTT_BROKER_URL -> controllers.mqtt.broker_url,
// TRAINING_PARAMS_MAX_DEPTH -> training.params.max_depth. Anything else is
// lowercased and kept as is.
func envKeyTransform(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if strings.HasPrefix(k, "controllers_") {
		parts := strings.SplitN(k, "_", 3)
		if len(parts) == 3 {
			return strings.Join(parts, ".")
		}
		return k
	}
	for _, s := range envSections {
		if strings.HasPrefix(k, s.prefix) && len(k) > len(s.prefix) {
			return s.path + strings.TrimPrefix(k, s.prefix)
		}
	}
	return k
}

// Pipeline converts the run-related sections.
func (c Config) Pipeline() (pipeline.Config, error) {
	var errs []error
	start, err := time.Parse(time.RFC3339, c.Data.Start)
	if err != nil {
		errs = append(errs, fmt.Errorf("data.start: %w", err))
	}
	kind, err := regress.ParseKind(c.Training.Estimator)
	if err != nil {
		errs = append(errs, fmt.Errorf("training.estimator: %w", err))
	}
	split, err := training.ParseSplit(c.Training.Split)
	if err != nil {
		errs = append(errs, fmt.Errorf("training.split: %w", err))
	}
	if len(errs) > 0 {
		return pipeline.Config{}, errors.Join(errs...)
	}

	p := c.Training.Params
	g := c.Training.Grid
	return pipeline.Config{
		RunID:    c.RunID,
		DataPath: c.Data.Path,
		Synth: dataset.SynthConfig{
			Seed:  c.Data.Seed,
			N:     c.Data.Samples,
			Start: start,
			Step:  c.Data.Step,
		},
		Energy: thermal.EnergyModel{Coefficient: c.Energy.Coefficient},
		Training: training.Config{
			Seed:         c.Training.Seed,
			TestFraction: c.Training.TestFraction,
			Split:        split,
			Estimator:    kind,
			Params: regress.Params{
				Alpha:          p.Alpha,
				NEstimators:    p.NEstimators,
				LearningRate:   p.LearningRate,
				MaxDepth:       p.MaxDepth,
				MinSamplesLeaf: p.MinSamplesLeaf,
			},
			Search: c.Training.Search,
			Grid: training.Grid{
				NEstimators:    g.NEstimators,
				LearningRate:   g.LearningRate,
				MaxDepth:       g.MaxDepth,
				MinSamplesLeaf: g.MinSamplesLeaf,
				Alpha:          g.Alpha,
			},
			Folds:    c.Training.Folds,
			Workers:  c.Training.Workers,
			Deadline: c.Training.Deadline,
		},
	}, nil
}

func (c Config) Outputs() pipeline.Outputs {
	return pipeline.Outputs{
		DatasetCSV: c.Output.DatasetCSV,
		ReportYAML: c.Output.ReportYAML,
		ModelJSON:  c.Output.ModelJSON,
	}
}

func (c Config) StoreConfig() store.Config {
	s := c.Store
	return store.Config{
		DSN:            s.DSN,
		Host:           s.Host,
		Port:           s.Port,
		Name:           s.Name,
		User:           s.User,
		Password:       s.Password,
		SSLMode:        s.SSLMode,
		MaxConnections: s.MaxConnections,
	}
}

func (c Config) MQTT() mqttctrl.Config {
	m := c.Controllers.MQTT
	return mqttctrl.Config{
		Site:            m.Site,
		BrokerURL:       m.BrokerURL,
		ClientID:        m.ClientID,
		BaseTopic:       m.BaseTopic,
		QoS:             m.QoS,
		RetainSummary:   m.RetainSummary,
		PublishInterval: m.PublishInterval,
		Username:        m.Username,
		Password:        m.Password,
	}
}

func (c Config) Modbus() modbusctrl.Config {
	return modbusctrl.Config{Addr: c.Controllers.MODBUS.Addr, UnitID: c.Controllers.MODBUS.UnitID}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := run.ParseID(c.RunID); err != nil {
		errs = append(errs, fmt.Errorf("run_id: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Data.Path == "" && c.Data.Samples < 0 {
		errs = append(errs, fmt.Errorf("data.samples must be >= 0, got %d", c.Data.Samples))
	}
	if err := (thermal.EnergyModel{Coefficient: c.Energy.Coefficient}).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("energy.coefficient: %w", err))
	}
	if pc, err := c.Pipeline(); err != nil {
		errs = append(errs, err)
	} else if err := pc.Training.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Store.Enabled && c.Store.DSN == "" && c.Store.Host == "" {
		errs = append(errs, errors.New("store: dsn or host is required"))
	}
	if c.Serve {
		errs = append(errs, c.validateControllers()...)
	}
	return errors.Join(errs...)
}

func (c Config) validateControllers() []error {
	var errs []error
	ctrl := c.Controllers
	if !ctrl.HTTP.Enabled && !ctrl.MQTT.Enabled && !ctrl.MODBUS.Enabled {
		errs = append(errs, errors.New("serve: no controller enabled"))
	}
	if ctrl.HTTP.Enabled && ctrl.HTTP.Addr == "" {
		errs = append(errs, errors.New("controllers.http.addr is required"))
	}
	if ctrl.MQTT.Enabled {
		if ctrl.MQTT.Site == "" {
			errs = append(errs, errors.New("controllers.mqtt.site is required"))
		}
		if ctrl.MQTT.QoS > 1 {
			errs = append(errs, errors.New("controllers.mqtt.qos must be 0 or 1"))
		}
	}
	if ctrl.MODBUS.Enabled && (ctrl.MODBUS.UnitID == 0 || ctrl.MODBUS.UnitID > 247) {
		errs = append(errs, fmt.Errorf("controllers.modbus.unit_id must be in 1..247, got %d", ctrl.MODBUS.UnitID))
	}
	return errs
}
