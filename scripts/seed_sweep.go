package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/logger"
	"github.com/Agrid-Dev/thermoptim/internal/pipeline"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
)

// SweepPlan selects the seeds and estimator to compare.
type SweepPlan struct {
	FirstSeed uint64
	Seeds     int
	Samples   int
	Estimator regress.Kind
}

// Sweep runs the whole pipeline once per seed and writes one CSV row each.
func Sweep(ctx context.Context, plan SweepPlan, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"seed", "estimator", "mae", "r2", "total_savings_kwh", "savings_pct", "mean_setpoint_c"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range plan.Seeds {
		seed := plan.FirstSeed + uint64(i)
		cfg := pipeline.DefaultConfig()
		cfg.Synth = dataset.DefaultSynthConfig(seed, plan.Samples)
		cfg.Training.Seed = seed
		cfg.Training.Estimator = plan.Estimator

		r, err := pipeline.Run(ctx, cfg)
		if err != nil {
			return fmt.Errorf("seed %d: %w", seed, err)
		}
		s := r.Get()
		pct := ""
		if s.Report.SavingsPct != nil {
			pct = formatFloat(*s.Report.SavingsPct)
		}
		if err := writer.Write([]string{
			strconv.FormatUint(seed, 10),
			s.Metrics.Estimator,
			formatFloat(s.Metrics.MAE),
			formatFloat(s.Metrics.R2),
			formatFloat(s.Report.TotalSavingsKWh),
			pct,
			formatFloat(s.Report.MeanSetpoint),
		}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func main() {
	var (
		first     uint64
		seeds     int
		samples   int
		estimator string
		out       string
	)
	flag.Uint64Var(&first, "first-seed", 1, "first seed of the sweep")
	flag.IntVar(&seeds, "seeds", 10, "number of consecutive seeds")
	flag.IntVar(&samples, "samples", 1000, "samples per run")
	flag.StringVar(&estimator, "estimator", "gbm", "gbm or linear")
	flag.StringVar(&out, "out", "seed_sweep.csv", "output CSV")
	flag.Parse()

	kind, err := regress.ParseKind(estimator)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	logger.Setup("warn", "text")

	file, err := os.Create(out)
	if err != nil {
		logger.Fatalf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	plan := SweepPlan{FirstSeed: first, Seeds: seeds, Samples: samples, Estimator: kind}
	if err := Sweep(context.Background(), plan, file); err != nil {
		logger.Fatalf("sweep: %v", err)
	}
	fmt.Printf("Sweep of %d seeds written to %s\n", seeds, out)
}
