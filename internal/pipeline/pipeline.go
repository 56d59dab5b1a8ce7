// Package pipeline chains the stages of one run: load or synthesize, label,
// train, predict and price the savings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/logger"
	"github.com/Agrid-Dev/thermoptim/internal/report"
	"github.com/Agrid-Dev/thermoptim/internal/run"
	"github.com/Agrid-Dev/thermoptim/internal/thermal"
	"github.com/Agrid-Dev/thermoptim/internal/training"
)

// Config describes one run. When DataPath is empty the dataset is
// synthesized from Synth.
type Config struct {
	RunID    string
	DataPath string
	Synth    dataset.SynthConfig
	Energy   thermal.EnergyModel
	Training training.Config
}

func DefaultConfig() Config {
	return Config{
		Synth:    dataset.DefaultSynthConfig(42, 1000),
		Energy:   thermal.DefaultEnergyModel(),
		Training: training.DefaultConfig(),
	}
}

// Outputs lists the files written after a run. Empty paths are skipped.
type Outputs struct {
	DatasetCSV string
	ReportYAML string
	ModelJSON  string
}

// Run executes every stage and returns the finished run. The first failing
// stage aborts the run.
func Run(ctx context.Context, cfg Config) (*run.Run, error) {
	id, err := run.ParseID(cfg.RunID)
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	if err := cfg.Energy.Validate(); err != nil {
		return nil, err
	}

	log := logger.WithRun(id.String())
	d, err := load(cfg, log)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	d, err = d.WithLabels()
	if err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}
	log.WithFields(logrus.Fields{"stage": "label", "records": d.Len(), "elapsed": time.Since(start)}).Info("dataset labeled")

	model, metrics, err := training.Train(ctx, cfg.Training, d)
	if err != nil {
		log.WithFields(logrus.Fields{"stage": "train", "reached": metrics.Stage}).WithError(err).Error("training failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"stage":     "train",
		"estimator": metrics.Estimator,
		"train":     metrics.TrainRows,
		"test":      metrics.TestRows,
		"mae":       metrics.MAE,
		"r2":        metrics.R2,
		"elapsed":   metrics.Duration,
	}).Info("model trained")

	rep, evaluated, err := report.SummarizeWith(d, model, cfg.Energy)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	fields := logrus.Fields{"stage": "report", "savings_kwh": rep.TotalSavingsKWh}
	if rep.SavingsPct != nil {
		fields["savings_pct"] = *rep.SavingsPct
	}
	log.WithFields(fields).Info("savings computed")

	r, err := run.New(id, run.Result{
		Model:   model,
		Energy:  cfg.Energy,
		Metrics: metrics,
		Report:  rep,
		Data:    evaluated,
	})
	if err != nil {
		return nil, err
	}
	log.Info("run finished")
	return r, nil
}

func load(cfg Config, log *logrus.Entry) (dataset.Dataset, error) {
	if cfg.DataPath != "" {
		d, err := dataset.Load(cfg.DataPath)
		if err != nil {
			return dataset.Dataset{}, err
		}
		log.WithFields(logrus.Fields{"stage": "load", "path": cfg.DataPath, "records": d.Len()}).Info("dataset loaded")
		return d, nil
	}
	d, err := dataset.Synthesize(cfg.Synth)
	if err != nil {
		return dataset.Dataset{}, err
	}
	log.WithFields(logrus.Fields{"stage": "synthesize", "seed": cfg.Synth.Seed, "records": d.Len()}).Info("dataset synthesized")
	return d, nil
}

// Write saves the requested artifacts of r, creating parent directories.
// Every output is attempted and the failures are joined.
func Write(r *run.Run, out Outputs) error {
	var errs []error
	for _, p := range []string{out.DatasetCSV, out.ReportYAML, out.ModelJSON} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			errs = append(errs, err)
		}
	}
	log := logger.WithRun(r.ID().String())
	if out.DatasetCSV != "" {
		if err := dataset.Save(out.DatasetCSV, r.Dataset()); err != nil {
			errs = append(errs, err)
		} else {
			log.WithField("path", filepath.Clean(out.DatasetCSV)).Info("dataset written")
		}
	}
	if out.ReportYAML != "" {
		rep := r.Report()
		if err := rep.SaveYAML(out.ReportYAML); err != nil {
			errs = append(errs, err)
		} else {
			log.WithField("path", filepath.Clean(out.ReportYAML)).Info("report written")
		}
	}
	if out.ModelJSON != "" {
		if err := r.Model().SaveFile(out.ModelJSON); err != nil {
			errs = append(errs, err)
		} else {
			log.WithField("path", filepath.Clean(out.ModelJSON)).Info("model written")
		}
	}
	return errors.Join(errs...)
}
