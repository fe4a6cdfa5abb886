package gendata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatBoth    = "both"
)

const (
	FactorsDataset    = "emission_factors"
	ActivitiesDataset = "activities"
	EmissionsDataset  = "carbon_emissions_data"
)

type Options struct {
	Dir     string
	Records int
	Seed    int64
	Format  string
}

// Write generates the emissions rows and writes all three datasets to
// opts.Dir. It returns the files it wrote.
func Write(opts Options) ([]string, error) {
	formats, err := formatsFor(opts.Format)
	if err != nil {
		return nil, err
	}
	rows, err := NewGenerator(opts.Seed).Generate(opts.Records)
	if err != nil {
		return nil, err
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	for _, format := range formats {
		path := filepath.Join(dir, FactorsDataset+"."+format)
		if err := writeDataset(path, format, EmissionFactors, factorRecord, factorHeader); err != nil {
			return written, err
		}
		written = append(written, path)

		path = filepath.Join(dir, ActivitiesDataset+"."+format)
		if err := writeDataset(path, format, Activities, activityRecord, activityHeader); err != nil {
			return written, err
		}
		written = append(written, path)

		path = filepath.Join(dir, EmissionsDataset+"."+format)
		if err := writeDataset(path, format, rows, emissionRecord, emissionHeader); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func formatsFor(format string) ([]string, error) {
	switch format {
	case "", FormatCSV:
		return []string{FormatCSV}, nil
	case FormatParquet:
		return []string{FormatParquet}, nil
	case FormatBoth:
		return []string{FormatCSV, FormatParquet}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: use csv, parquet or both", format)
	}
}

func writeDataset[T any](path, format string, rows []T, record func(T) []string, header []string) error {
	if format == FormatParquet {
		return writeParquet(path, rows)
	}
	return writeCSV(path, rows, record, header)
}

func writeParquet[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return file.Close()
}

func writeCSV[T any](path string, rows []T, record func(T) []string, header []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(record(row)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return file.Close()
}

var factorHeader = []string{"emission_factor_id", "name", "scope", "unit", "kg_co2e", "description"}

func factorRecord(f EmissionFactor) []string {
	return []string{f.ID, f.Name, f.Scope, f.Unit, formatFloat(f.KgCO2e), f.Description}
}

var activityHeader = []string{"activity_id", "name", "emission_factor_id", "base_amount", "variance"}

func activityRecord(a Activity) []string {
	return []string{a.ID, a.Name, a.EmissionFactorID, formatFloat(a.BaseAmount), formatFloat(a.Variance)}
}

var emissionHeader = []string{
	"date", "facility", "city", "country", "department", "activity_id", "activity_name",
	"emission_factor_id", "scope", "consumption_value", "consumption_unit", "emissions_mt_co2e",
}

func emissionRecord(e Emission) []string {
	return []string{
		e.Day().Format(time.DateOnly),
		e.Facility,
		e.City,
		e.Country,
		e.Department,
		e.ActivityID,
		e.ActivityName,
		e.EmissionFactorID,
		e.Scope,
		formatFloat(e.ConsumptionValue),
		e.ConsumptionUnit,
		formatFloat(e.EmissionsMtCO2e),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
