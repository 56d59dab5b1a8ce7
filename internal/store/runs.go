package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/logger"
	"github.com/Agrid-Dev/thermoptim/internal/run"
)

var ErrRunNotFound = errors.New("run not found")

var recordColumns = []string{
	"run_id", "idx", "ts",
	"outdoor_temp_c", "humidity_pct", "occupancy", "user_pref_temp_c", "indoor_temp_before_c",
	"optimal_indoor_temp_c", "predicted_optimal_temp_c",
	"energy_before_kwh", "energy_after_kwh", "savings_kwh", "savings_pct",
}

const insertRunQuery = `
	INSERT INTO runs (
		id, created_at, estimator, params, train_rows, test_rows, cv_mae, mae, r2,
		records, total_before_kwh, total_after_kwh, total_savings_kwh, savings_pct, mean_setpoint_c
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// SaveRun writes the run summary and every record in one transaction.
// Records are streamed with COPY.
func (db *DB) SaveRun(ctx context.Context, r *run.Run) error {
	s := r.Get()
	params, err := json.Marshal(s.Metrics.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	rep := s.Report

	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertRunQuery,
			s.ID, s.CreatedAt, s.Metrics.Estimator, string(params),
			s.Metrics.TrainRows, s.Metrics.TestRows,
			nullFloat(s.Metrics.CVMAE), nullFloat(s.Metrics.MAE), nullFloat(s.Metrics.R2),
			rep.Records, rep.TotalBeforeKWh, rep.TotalAfterKWh, rep.TotalSavingsKWh,
			nullPtr(rep.SavingsPct), rep.MeanSetpoint,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("run_records", recordColumns...))
		if err != nil {
			return fmt.Errorf("prepare copy: %w", err)
		}
		d := r.Dataset()
		for i := range d.Len() {
			if _, err := stmt.ExecContext(ctx, recordRow(s.ID, i, d.At(i))...); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("copy record %d: %w", i, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("flush copy: %w", err)
		}
		return stmt.Close()
	})
	if err != nil {
		return err
	}
	logger.WithRun(s.ID).WithField("records", r.Dataset().Len()).Info("run stored")
	return nil
}

// recordRow lays one record out in recordColumns order. NaN and missing
// values become NULL.
func recordRow(runID string, idx int, rec dataset.Record) []any {
	var ts any
	if !rec.Timestamp.IsZero() {
		ts = rec.Timestamp.UTC()
	}
	var occ any
	if rec.Occupancy.Valid() {
		occ = int(rec.Occupancy)
	}
	return []any{
		runID, idx, ts,
		nullFloat(rec.OutdoorTemp), nullFloat(rec.Humidity), occ,
		nullFloat(rec.UserPrefTemp), nullFloat(rec.IndoorTempBefore),
		nullFloat(rec.Label), nullFloat(rec.Predicted),
		nullFloat(rec.Energy.BeforeKWh), nullFloat(rec.Energy.AfterKWh),
		nullFloat(rec.Energy.SavingsKWh), nullFloat(rec.Energy.SavingsPct),
	}
}

// StoredRun is the summary row of a saved run.
type StoredRun struct {
	ID              uuid.UUID
	CreatedAt       time.Time
	Estimator       string
	MAE             sql.NullFloat64
	Records         int
	TotalSavingsKWh float64
	SavingsPct      sql.NullFloat64
	StoredRecords   int
}

func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (StoredRun, error) {
	const q = `
		SELECT r.id, r.created_at, r.estimator, r.mae, r.records, r.total_savings_kwh, r.savings_pct,
			(SELECT COUNT(*) FROM run_records rr WHERE rr.run_id = r.id)
		FROM runs r WHERE r.id = $1`
	var out StoredRun
	var rawID string
	err := db.QueryRowContext(ctx, q, id.String()).Scan(
		&rawID, &out.CreatedAt, &out.Estimator, &out.MAE, &out.Records,
		&out.TotalSavingsKWh, &out.SavingsPct, &out.StoredRecords,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return StoredRun{}, fmt.Errorf("get run: %w", err)
	}
	if out.ID, err = uuid.Parse(rawID); err != nil {
		return StoredRun{}, fmt.Errorf("get run: %w", err)
	}
	return out, nil
}

func (db *DB) DeleteRun(ctx context.Context, id uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM runs WHERE id = $1`, id.String())
	return err
}

func nullFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return nullFloat(*v)
}
