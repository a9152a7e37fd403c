package history

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
)

var (
	testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	t0         = time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRun(created time.Time, n int) Run {
	r := Run{
		ID:              NewRunID(),
		CreatedAt:       created,
		Location:        "Lisbon",
		Spacecraft:      "International Space Station (USA)",
		NORADID:         25544,
		Mode:            "event",
		Days:            1,
		MinElevationDeg: 10,
		Status:          "empty",
		DurationMs:      42,
	}
	for i := 0; i < n; i++ {
		start := created.Add(time.Duration(i+1) * 90 * time.Minute)
		r.Passes = append(r.Passes, passes.Summary{
			StartTime:        start,
			EndTime:          start.Add(6 * time.Minute),
			PeakTime:         start.Add(3 * time.Minute),
			PeakElevationDeg: 20 + float64(i),
			PeakAzimuthDeg:   180.5,
			DirectionSign:    -1,
		})
		r.Status = "passes"
	}
	return r
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewRunID())
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	older := testRun(t0, 2)
	newer := testRun(t0.Add(500*time.Millisecond), 0)
	newest := testRun(t0.Add(time.Second), 1)
	for _, r := range []Run{older, newest, newer} {
		require.NoError(t, s.Record(ctx, r))
	}

	runs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{newest.ID, newer.ID, older.ID}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	got := runs[2]
	assert.True(t, got.CreatedAt.Equal(older.CreatedAt))
	assert.Equal(t, older.Location, got.Location)
	assert.Equal(t, older.NORADID, got.NORADID)
	assert.Equal(t, "passes", got.Status)
	require.Len(t, got.Passes, 2)
	assert.True(t, got.Passes[1].StartTime.Equal(older.Passes[1].StartTime))
	assert.Equal(t, 21.0, got.Passes[1].PeakElevationDeg)
	assert.Equal(t, -1, got.Passes[1].DirectionSign)
	assert.Empty(t, runs[1].Passes)

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newest.ID, limited[0].ID)
}

func TestRecordRejects(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	assert.Error(t, s.Record(ctx, Run{}))

	r := testRun(t0, 1)
	require.NoError(t, s.Record(ctx, r))
	assert.Error(t, s.Record(ctx, r), "duplicate run ID")

	runs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "history.db"), testLogger)
	assert.Error(t, err)
}

func TestExportParquet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, testRun(t0, 2)))
	require.NoError(t, s.Record(ctx, testRun(t0.Add(time.Hour), 0)))

	res, err := s.ExportParquet(ctx, filepath.Join(t.TempDir(), "flyby"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Runs)
	assert.Equal(t, 2, res.Passes)

	runRows := readParquet[RunRow](t, res.RunsFile)
	require.Len(t, runRows, 2)
	assert.Equal(t, int32(0), runRows[0].PassCount)
	assert.Equal(t, int32(2), runRows[1].PassCount)
	assert.Equal(t, int32(25544), runRows[1].NORADID)

	passRows := readParquet[PassRow](t, res.PassesFile)
	require.Len(t, passRows, 2)
	assert.Equal(t, int32(1), passRows[0].PassIndex)
	assert.Equal(t, 360.0, passRows[0].DurationSeconds)
	assert.Equal(t, int32(-1), passRows[0].DirectionSign)

	_, err = s.ExportParquet(ctx, "")
	assert.Error(t, err)
}

func readParquet[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	reader := parquet.NewGenericReader[T](file)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	return rows[:n]
}
