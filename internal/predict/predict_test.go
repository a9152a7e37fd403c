package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/catalog"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/history"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/propagation"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/render"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/tle"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

var (
	testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	t0         = time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	lisbon     = catalog.Location{Name: "Lisbon", LatDeg: 38.736, LonDeg: -9.1426}
	iss        = catalog.Spacecraft{Name: "International Space Station (USA)", NORADID: 25544}
)

// sky rises to 40 deg at t0+600s and to 30 deg at t0+2400s, losing
// 0.1 deg/s either side, so it is at or above 10 deg over [300, 900] and
// [2200, 2600] seconds.
type sky struct{}

func (sky) LookAt(_ propagation.Observer, t time.Time) (passes.Sample, error) {
	t = t.UTC().Truncate(time.Second)
	sec := t.Sub(t0).Seconds()
	el := math.Max(40-math.Abs(sec-600)/10, 30-math.Abs(sec-2400)/10)
	return passes.Sample{Time: t, ElevationDeg: math.Max(el, -90), AzimuthDeg: math.Mod(100+sec*0.05, 360)}, nil
}

type tleStub struct {
	entry tle.Entry
	err   error
}

func (s tleStub) Lookup(_ context.Context, noradID int) (tle.Entry, error) {
	if s.err != nil {
		return tle.Entry{}, s.err
	}
	e := s.entry
	e.NORADID = noradID
	return e, nil
}

type chartStub struct {
	mu     sync.Mutex
	charts []render.Chart
	fail   bool
	pruned int
}

func (c *chartStub) RenderFile(prefix string, ch render.Chart) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return "", errors.New("disk full")
	}
	c.charts = append(c.charts, ch)
	return fmt.Sprintf("%s_%d.png", prefix, ch.Index), nil
}

func (c *chartStub) Prune() error {
	c.pruned++
	return nil
}

type recorderStub struct {
	runs []history.Run
}

func (r *recorderStub) Record(_ context.Context, run history.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

func newTestPredictor(charts ChartWriter, rec Recorder, tles TLESource) *Predictor {
	p := New(Config{
		Sampling:        propagation.Config{Workers: 2, Step: time.Second, CoarseStep: 30 * time.Second},
		MaxDays:         3,
		MinElevationDeg: 10,
		Mode:            passes.ModeEvent,
	}, tles, charts, rec, testLogger)
	p.now = func() time.Time { return t0 }
	p.newPropagator = func(tle.Entry) (propagation.LookAngler, error) { return sky{}, nil }
	return p
}

func ptr[T any](v T) *T { return &v }

func TestPredictModesAgree(t *testing.T) {
	for _, mode := range []passes.Mode{passes.ModeUniform, passes.ModeEvent} {
		t.Run(mode.String(), func(t *testing.T) {
			charts := &chartStub{}
			rec := &recorderStub{}
			p := newTestPredictor(charts, rec, tleStub{})

			report, err := p.Predict(context.Background(), Request{
				Location:   lisbon,
				Spacecraft: iss,
				Days:       1.0 / 24,
				Mode:       ptr(mode),
			})
			require.NoError(t, err)

			assert.Equal(t, passes.StatusPasses, report.Status)
			assert.Equal(t, mode, report.Mode)
			assert.Equal(t, 10.0, report.MinElevationDeg)
			assert.True(t, report.Start.Equal(t0))
			require.Len(t, report.Passes, 2)

			first := report.Passes[0]
			assert.Equal(t, 1, first.Index)
			assert.True(t, first.Summary.StartTime.Equal(t0.Add(300*time.Second)))
			assert.True(t, first.Summary.EndTime.Equal(t0.Add(900*time.Second)))
			assert.True(t, first.Summary.PeakTime.Equal(t0.Add(600*time.Second)))
			assert.Equal(t, 40.0, first.Summary.PeakElevationDeg)
			assert.Equal(t, 1, first.Summary.DirectionSign)
			assert.Equal(t, report.RunID[:8]+"_1.png", first.Chart)
			assert.Empty(t, first.Error)

			second := report.Passes[1]
			assert.True(t, second.Summary.StartTime.Equal(t0.Add(2200*time.Second)))
			assert.True(t, second.Summary.EndTime.Equal(t0.Add(2600*time.Second)))

			require.Len(t, charts.charts, 2)
			assert.Len(t, charts.charts[0].Samples, 601)
			assert.Equal(t, "International Space Station (USA)", charts.charts[1].Spacecraft)
			assert.Equal(t, 1, charts.pruned)

			require.Len(t, rec.runs, 1)
			assert.Equal(t, report.RunID, rec.runs[0].ID)
			assert.Equal(t, "passes", rec.runs[0].Status)
			assert.Equal(t, mode.String(), rec.runs[0].Mode)
			assert.Len(t, rec.runs[0].Passes, 2)
		})
	}
}

func TestPredictEmpty(t *testing.T) {
	charts := &chartStub{}
	rec := &recorderStub{}
	p := newTestPredictor(charts, rec, tleStub{})

	report, err := p.Predict(context.Background(), Request{
		Location:        lisbon,
		Spacecraft:      iss,
		Days:            1.0 / 24,
		MinElevationDeg: ptr(60.0),
	})
	require.NoError(t, err)
	assert.Equal(t, passes.StatusEmpty, report.Status)
	assert.NotNil(t, report.Passes)
	assert.Empty(t, report.Passes)
	assert.Empty(t, charts.charts)
	assert.Zero(t, charts.pruned)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "empty", rec.runs[0].Status)
}

func TestPredictValidation(t *testing.T) {
	p := newTestPredictor(nil, nil, tleStub{})

	tests := []struct {
		name      string
		req       Request
		threshold bool
	}{
		{"zero days", Request{Location: lisbon, Spacecraft: iss, Days: 0}, false},
		{"too many days", Request{Location: lisbon, Spacecraft: iss, Days: 3.5}, false},
		{"nan days", Request{Location: lisbon, Spacecraft: iss, Days: math.NaN()}, false},
		{"threshold above zenith", Request{Location: lisbon, Spacecraft: iss, Days: 1, MinElevationDeg: ptr(91.0)}, true},
		{"nan threshold", Request{Location: lisbon, Spacecraft: iss, Days: 1, MinElevationDeg: ptr(math.NaN())}, true},
		{"unknown mode", Request{Location: lisbon, Spacecraft: iss, Days: 1, Mode: ptr(passes.Mode(7))}, false},
		{"no norad id", Request{Location: lisbon, Spacecraft: catalog.Spacecraft{Name: "X"}, Days: 1}, false},
		{"bad latitude", Request{Location: catalog.Location{Name: "X", LatDeg: 95}, Spacecraft: iss, Days: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Predict(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			assert.Equal(t, tt.threshold, errors.Is(err, passes.ErrInvalidThreshold))
		})
	}
}

func TestPredictTLEFailure(t *testing.T) {
	p := newTestPredictor(nil, nil, tleStub{err: fmt.Errorf("%w: upstream 503", tle.ErrUnavailable)})
	_, err := p.Predict(context.Background(), Request{Location: lisbon, Spacecraft: iss, Days: 1})
	assert.True(t, errors.Is(err, tle.ErrUnavailable))
}

func TestPredictChartFailureIsPerPass(t *testing.T) {
	charts := &chartStub{fail: true}
	p := newTestPredictor(charts, nil, tleStub{})

	report, err := p.Predict(context.Background(), Request{Location: lisbon, Spacecraft: iss, Days: 1.0 / 24})
	require.NoError(t, err)
	require.Len(t, report.Passes, 2)
	for _, pr := range report.Passes {
		assert.Empty(t, pr.Chart)
		assert.Equal(t, "disk full", pr.Error)
	}
}

func TestPredictWithoutCharts(t *testing.T) {
	p := newTestPredictor(nil, nil, tleStub{})
	report, err := p.Predict(context.Background(), Request{Location: lisbon, Spacecraft: iss, Days: 1.0 / 24})
	require.NoError(t, err)
	require.Len(t, report.Passes, 2)
	assert.Empty(t, report.Passes[0].Chart)
	assert.Empty(t, report.Passes[0].Error)
}

func TestPredictISSEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping SGP4 propagation in short mode")
	}

	entry := tle.Entry{Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2}
	dir := filepath.Join(t.TempDir(), "charts")
	charts := render.NewDir(render.NewRenderer(render.DefaultStyle()), dir, 50, testLogger)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), testLogger)
	require.NoError(t, err)
	defer store.Close()

	p := New(Config{
		Sampling:        propagation.Config{Workers: 4, Step: time.Second, CoarseStep: 30 * time.Second},
		MinElevationDeg: 10,
		Mode:            passes.ModeEvent,
	}, tleStub{entry: entry}, charts, store, testLogger)

	report, err := p.Predict(context.Background(), Request{
		Location:   lisbon,
		Spacecraft: iss,
		Start:      t0,
		Days:       1,
	})
	require.NoError(t, err)
	require.Equal(t, passes.StatusPasses, report.Status)

	for _, pr := range report.Passes {
		require.NotEmpty(t, pr.Chart, "pass %d: %s", pr.Index, pr.Error)
		_, err := os.Stat(filepath.Join(dir, pr.Chart))
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, pr.Summary.PeakElevationDeg, 10.0)
		assert.True(t, pr.Summary.EndTime.After(pr.Summary.StartTime))
	}

	runs, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Passes, len(report.Passes))
}
