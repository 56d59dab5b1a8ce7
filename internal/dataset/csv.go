package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Agrid-Dev/thermoptim/internal/thermal"
)

// Accepted timestamp layouts, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Load reads a dataset from a CSV file.
func Load(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	d, err := Read(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return Dataset{}, err
	}
	return d, nil
}

// Read parses CSV with the sample columns first, optionally followed by
// derived columns. Any bad row fails the whole read.
func Read(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return Dataset{}, &LoadError{Line: 1, Err: errors.New("empty input")}
		}
		return Dataset{}, &LoadError{Line: 1, Err: err}
	}
	schema, err := parseHeader(header)
	if err != nil {
		return Dataset{}, err
	}

	var records []Record
	lineNum := 1
	for {
		lineNum++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, &LoadError{Line: lineNum, Err: err}
		}
		rec, err := parseRow(schema, row)
		if err != nil {
			return Dataset{}, &LoadError{Line: lineNum, Err: err}
		}
		records = append(records, rec)
	}
	return Dataset{records: records}, nil
}

func parseHeader(header []string) (Schema, error) {
	if len(header) < len(SampleSchema) {
		return nil, fmt.Errorf("%w: expected at least %d columns, got %d", ErrSchema, len(SampleSchema), len(header))
	}
	schema := make(Schema, 0, len(header))
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if i < len(SampleSchema) {
			if name != SampleSchema[i].Name {
				return nil, fmt.Errorf("%w: expected column %d to be %q, got %q", ErrSchema, i, SampleSchema[i].Name, col)
			}
			schema = append(schema, SampleSchema[i])
			continue
		}
		j := DerivedSchema.Index(name)
		if j < 0 {
			return nil, fmt.Errorf("%w: unexpected column %q", ErrSchema, col)
		}
		if schema.Index(name) >= 0 {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, col)
		}
		schema = append(schema, DerivedSchema[j])
	}
	return schema, nil
}

func parseRow(schema Schema, row []string) (Record, error) {
	rec := NewRecord(Sample{})
	for i, f := range schema {
		cell := strings.TrimSpace(row[i])
		switch f.Kind {
		case KindTime:
			ts, err := parseTimestamp(cell)
			if err != nil {
				return Record{}, fmt.Errorf("%s: %w", f.Name, err)
			}
			rec.Timestamp = ts
		case KindCategory:
			occ, err := thermal.ParseOccupancy(cell)
			if err != nil {
				return Record{}, fmt.Errorf("%s: %w", f.Name, err)
			}
			rec.Occupancy = occ
		default:
			v, err := parseFloat(cell)
			if err != nil {
				return Record{}, fmt.Errorf("%s: %w", f.Name, err)
			}
			rec.set(f.Name, v)
		}
	}
	rec.Sample = rec.Sample.Clipped()
	if err := checkLabel(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// labelTolerance absorbs decimal formatting of labels written elsewhere.
const labelTolerance = 1e-6

// checkLabel clips a file-supplied label to the comfort range and rejects it
// when the sample carries enough to derive a different one.
func checkLabel(rec *Record) error {
	if !rec.Labeled() {
		return nil
	}
	rec.Label = thermal.ComfortBounds.Clip(rec.Label)
	if !rec.Sample.labelInputsPresent() {
		return nil
	}
	want, err := rec.Sample.optimalTemperature()
	if err != nil {
		return fmt.Errorf("%s: %w", ColOptimalTemp, err)
	}
	if math.Abs(want-rec.Label) > labelTolerance {
		return fmt.Errorf("%w: %s %v disagrees with derived label %v", ErrSchema, ColOptimalTemp, rec.Label, want)
	}
	return nil
}

func (r *Record) set(name string, v float64) {
	switch name {
	case ColOutdoorTemp:
		r.OutdoorTemp = v
	case ColHumidity:
		r.Humidity = v
	case ColUserPrefTemp:
		r.UserPrefTemp = v
	case ColIndoorTempBefore:
		r.IndoorTempBefore = v
	case ColOptimalTemp:
		r.Label = v
	case ColPredictedTemp:
		r.Predicted = v
	case ColEnergyBefore:
		r.Energy.BeforeKWh = v
	case ColEnergyAfter:
		r.Energy.AfterKWh = v
	case ColSavingsKWh:
		r.Energy.SavingsKWh = v
	case ColSavingsPct:
		r.Energy.SavingsPct = v
	}
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// Save writes d to path, replacing any existing file.
func Save(path string, d Dataset) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return Write(f, d)
}

// Write emits the sample columns and every derived column populated on any
// record. Missing values are written as empty cells.
func Write(w io.Writer, d Dataset) error {
	schema := d.Schema()
	cw := csv.NewWriter(w)
	if err := cw.Write(schema.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(schema))
	for i, r := range d.records {
		for j, f := range schema {
			row[j] = formatCell(r, f)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(r Record, f Field) string {
	switch f.Kind {
	case KindTime:
		if r.Timestamp.IsZero() {
			return ""
		}
		return r.Timestamp.UTC().Format(time.RFC3339)
	case KindCategory:
		if !r.Occupancy.Valid() {
			return ""
		}
		return strconv.Itoa(int(r.Occupancy))
	}
	v, _ := r.value(f.Name)
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
