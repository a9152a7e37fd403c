package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

// RunRow is one run in the Parquet export.
type RunRow struct {
	RunID           string    `parquet:"run_id,snappy"`
	CreatedAt       time.Time `parquet:"created_at,snappy"`
	Location        string    `parquet:"location,snappy"`
	Spacecraft      string    `parquet:"spacecraft,snappy"`
	NORADID         int32     `parquet:"norad_id,snappy"`
	Mode            string    `parquet:"mode,snappy"`
	Days            float64   `parquet:"days,snappy"`
	MinElevationDeg float64   `parquet:"min_elevation_deg,snappy"`
	Status          string    `parquet:"status,snappy"`
	PassCount       int32     `parquet:"pass_count,snappy"`
	DurationMs      int64     `parquet:"duration_ms,snappy"`
}

// PassRow is one pass in the Parquet export.
type PassRow struct {
	RunID            string    `parquet:"run_id,snappy"`
	PassIndex        int32     `parquet:"pass_index,snappy"`
	Location         string    `parquet:"location,snappy"`
	Spacecraft       string    `parquet:"spacecraft,snappy"`
	StartTime        time.Time `parquet:"start_time,snappy"`
	EndTime          time.Time `parquet:"end_time,snappy"`
	PeakTime         time.Time `parquet:"peak_time,snappy"`
	DurationSeconds  float64   `parquet:"duration_seconds,snappy"`
	PeakElevationDeg float64   `parquet:"peak_elevation_deg,snappy"`
	PeakAzimuthDeg   float64   `parquet:"peak_azimuth_deg,snappy"`
	DirectionSign    int32     `parquet:"direction_sign,snappy"`
}

// ExportResult names the files written by ExportParquet.
type ExportResult struct {
	RunsFile   string
	PassesFile string
	Runs       int
	Passes     int
}

// ExportParquet writes every run to <prefix>.runs.parquet and every pass to
// <prefix>.passes.parquet.
func (s *Store) ExportParquet(ctx context.Context, prefix string) (ExportResult, error) {
	if prefix == "" {
		return ExportResult{}, errors.New("export prefix is required")
	}

	runs, err := s.Recent(ctx, 0)
	if err != nil {
		return ExportResult{}, err
	}
	runRows, passRows := toRows(runs)

	res := ExportResult{
		RunsFile:   prefix + ".runs.parquet",
		PassesFile: prefix + ".passes.parquet",
		Runs:       len(runRows),
		Passes:     len(passRows),
	}
	if err := writeParquet(res.RunsFile, runRows); err != nil {
		return ExportResult{}, err
	}
	if err := writeParquet(res.PassesFile, passRows); err != nil {
		return ExportResult{}, err
	}

	s.logger.Info("history exported",
		"runs_file", res.RunsFile,
		"passes_file", res.PassesFile,
		"runs", res.Runs,
		"passes", res.Passes,
	)
	return res, nil
}

func toRows(runs []Run) ([]RunRow, []PassRow) {
	runRows := make([]RunRow, 0, len(runs))
	var passRows []PassRow
	for _, r := range runs {
		runRows = append(runRows, RunRow{
			RunID:           r.ID,
			CreatedAt:       r.CreatedAt,
			Location:        r.Location,
			Spacecraft:      r.Spacecraft,
			NORADID:         int32(r.NORADID),
			Mode:            r.Mode,
			Days:            r.Days,
			MinElevationDeg: r.MinElevationDeg,
			Status:          r.Status,
			PassCount:       int32(len(r.Passes)),
			DurationMs:      r.DurationMs,
		})
		for i, p := range r.Passes {
			passRows = append(passRows, PassRow{
				RunID:            r.ID,
				PassIndex:        int32(i + 1),
				Location:         r.Location,
				Spacecraft:       r.Spacecraft,
				StartTime:        p.StartTime,
				EndTime:          p.EndTime,
				PeakTime:         p.PeakTime,
				DurationSeconds:  p.Duration().Seconds(),
				PeakElevationDeg: p.PeakElevationDeg,
				PeakAzimuthDeg:   p.PeakAzimuthDeg,
				DirectionSign:    int32(p.DirectionSign),
			})
		}
	}
	return runRows, passRows
}

func writeParquet[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file %s: %w", path, err)
	}
	return file.Close()
}
