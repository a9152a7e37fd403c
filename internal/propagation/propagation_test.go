package propagation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
)

// ISS TLE (epoch 2024, will still propagate reasonably for near-future times).
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

var (
	lisbon = Observer{Name: "Lisbon", LatDeg: 38.736, LonDeg: -9.1426}
	epoch  = time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeSky is a deterministic LookAngler. Elevation is a sum of triangular
// bumps: each bump peaks at peakSec (seconds after epoch) and falls off at
// 0.1 deg/s.
type fakeSky struct {
	bumps  []bump
	failAt time.Time
}

type bump struct {
	peakSec float64
	peakEl  float64
}

func (f fakeSky) LookAt(_ Observer, t time.Time) (passes.Sample, error) {
	t = t.UTC().Truncate(time.Second)
	if !f.failAt.IsZero() && t.Equal(f.failAt) {
		return passes.Sample{}, errors.New("propagation diverged")
	}
	sec := t.Sub(epoch).Seconds()
	el := -90.0
	for _, b := range f.bumps {
		el = math.Max(el, b.peakEl-math.Abs(sec-b.peakSec)/10)
	}
	return passes.Sample{
		Time:         t,
		ElevationDeg: math.Max(el, -90),
		AzimuthDeg:   math.Mod(sec*0.05, 360),
	}, nil
}

// twoPasses is visible at or above 10 deg over [300 s, 900 s] and
// [2200 s, 2600 s].
var twoPasses = fakeSky{bumps: []bump{{peakSec: 600, peakEl: 40}, {peakSec: 2400, peakEl: 30}}}

func at(sec int) time.Time { return epoch.Add(time.Duration(sec) * time.Second) }

func TestLookAtISS(t *testing.T) {
	prop, err := NewSGP4Propagator(issLine1, issLine2, 25544)
	if err != nil {
		t.Fatalf("NewSGP4Propagator failed: %v", err)
	}
	if prop.NORADID() != 25544 {
		t.Errorf("NORADID = %d, want 25544", prop.NORADID())
	}

	target := time.Date(2024, 4, 10, 12, 0, 0, 500_000_000, time.UTC)
	s, err := prop.LookAt(lisbon, target)
	if err != nil {
		t.Fatalf("LookAt failed: %v", err)
	}
	if !s.Time.Equal(target.Truncate(time.Second)) {
		t.Errorf("sample time = %s, want truncated to whole second", s.Time)
	}
	if s.ElevationDeg < -90 || s.ElevationDeg > 90 {
		t.Errorf("elevation %.3f outside [-90, 90]", s.ElevationDeg)
	}
	if s.AzimuthDeg < 0 || s.AzimuthDeg >= 360 {
		t.Errorf("azimuth %.3f outside [0, 360)", s.AzimuthDeg)
	}
}

func TestNewSGP4PropagatorInvalidTLE(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
	}{
		{"garbage", "invalid line 1", "invalid line 2"},
		{"swapped", issLine2, issLine1},
		{"truncated", issLine1[:60], issLine2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSGP4Propagator(tt.line1, tt.line2, 99999); err == nil {
				t.Fatal("expected error for invalid TLE, got nil")
			}
		})
	}
}

func TestNormalizeAzimuth(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{359.5, 359.5},
		{360, 0},
		{-10, 350},
		{725, 5},
	}
	for _, tt := range tests {
		if got := normalizeAzimuth(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("normalizeAzimuth(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSplitWindowCoversGrid(t *testing.T) {
	for _, parts := range []int{0, 1, 3, 4, 7, 200} {
		windows := splitWindow(epoch, 101, time.Second, parts)
		next := epoch
		for i, w := range windows {
			if !w.Start.Equal(next) {
				t.Fatalf("parts=%d: window %d starts at %s, want %s", parts, i, w.Start, next)
			}
			next = w.End.Add(time.Second)
		}
		if want := at(100); !windows[len(windows)-1].End.Equal(want) {
			t.Errorf("parts=%d: last window ends at %s, want %s", parts, windows[len(windows)-1].End, want)
		}
	}
}

func TestUniformSourceOrderAcrossWorkers(t *testing.T) {
	pool := NewWorkerPool(4, testLogger())
	src := NewUniformSource(twoPasses, pool, Config{Step: time.Second})

	series, err := src.Series(context.Background(), lisbon, Window{Start: epoch, End: at(3000)}, 10)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if series.Len() != 3001 {
		t.Fatalf("series has %d samples, want 3001", series.Len())
	}
	if series.Step() != time.Second {
		t.Errorf("series step = %s, want 1s", series.Step())
	}
	for i := 0; i < series.Len(); i++ {
		if !series.At(i).Time.Equal(at(i)) {
			t.Fatalf("sample %d at %s, want %s", i, series.At(i).Time, at(i))
		}
	}

	res, err := passes.Run(series, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	assertBounds(t, res, [][2]int{{300, 900}, {2200, 2600}})
}

func TestUniformSourceLimits(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())
	w := Window{Start: epoch, End: at(100)}

	src := NewUniformSource(twoPasses, pool, Config{Step: time.Second, MaxSamples: 50})
	if _, err := src.Series(context.Background(), lisbon, w, 10); err == nil {
		t.Error("expected error when the window exceeds MaxSamples")
	}

	src = NewUniformSource(twoPasses, pool, Config{Step: 500 * time.Millisecond})
	if _, err := src.Series(context.Background(), lisbon, w, 10); err == nil {
		t.Error("expected error for sub-second step")
	}

	src = NewUniformSource(twoPasses, pool, Config{Step: time.Second})
	if _, err := src.Series(context.Background(), lisbon, Window{Start: at(10), End: epoch}, 10); err == nil {
		t.Error("expected error for inverted window")
	}
}

func TestUniformSourcePropagationFailure(t *testing.T) {
	sky := twoPasses
	sky.failAt = at(1234)

	src := NewUniformSource(sky, NewWorkerPool(4, testLogger()), Config{Step: time.Second})
	_, err := src.Series(context.Background(), lisbon, Window{Start: epoch, End: at(3000)}, 10)
	if err == nil || err.Error() != "propagation diverged" {
		t.Fatalf("error = %v, want propagation failure", err)
	}
}

func TestUniformSourceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewUniformSource(twoPasses, NewWorkerPool(2, testLogger()), Config{Step: time.Second})
	if _, err := src.Series(ctx, lisbon, Window{Start: epoch, End: at(3000)}, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestEventSourceFindsRisePeakSet(t *testing.T) {
	src := NewEventSource(twoPasses, Config{CoarseStep: 30 * time.Second}, testLogger())

	series, err := src.Series(context.Background(), lisbon, Window{Start: epoch, End: at(3000)}, 10)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if series.Mode() != passes.ModeEvent {
		t.Fatalf("mode = %s, want event", series.Mode())
	}

	want := []struct {
		kind passes.EventKind
		sec  int
	}{
		{passes.EventRise, 300}, {passes.EventPeak, 600}, {passes.EventSet, 900},
		{passes.EventRise, 2200}, {passes.EventPeak, 2400}, {passes.EventSet, 2600},
	}
	if series.Len() != len(want) {
		t.Fatalf("got %d events, want %d", series.Len(), len(want))
	}
	for i, w := range want {
		if series.Kind(i) != w.kind || !series.At(i).Time.Equal(at(w.sec)) {
			t.Errorf("event %d = %s at %s, want %s at %s", i, series.Kind(i), series.At(i).Time, w.kind, at(w.sec))
		}
	}

	res, err := passes.Run(series, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	assertBounds(t, res, [][2]int{{300, 900}, {2200, 2600}})
	if got := res.Passes[0].Summary.PeakElevationDeg; got != 40 {
		t.Errorf("first peak elevation = %v, want 40", got)
	}
}

func TestEventSourcePartialPasses(t *testing.T) {
	src := NewEventSource(twoPasses, Config{CoarseStep: 30 * time.Second}, testLogger())

	tests := []struct {
		name   string
		window Window
		bounds [][2]int
	}{
		{"in progress at start", Window{Start: at(500), End: at(3000)}, [][2]int{{2200, 2600}}},
		{"in progress at end", Window{Start: epoch, End: at(2500)}, [][2]int{{300, 900}}},
		{"inside one pass", Window{Start: at(400), End: at(800)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := src.Series(context.Background(), lisbon, tt.window, 10)
			if err != nil {
				t.Fatalf("Series failed: %v", err)
			}
			res, err := passes.Run(series, 10)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			assertBounds(t, res, tt.bounds)
		})
	}
}

func TestEventSourceNeverVisible(t *testing.T) {
	src := NewEventSource(twoPasses, Config{}, testLogger())
	series, err := src.Series(context.Background(), lisbon, Window{Start: epoch, End: at(3000)}, 60)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if series.Len() != 0 {
		t.Errorf("got %d events above 60 deg, want 0", series.Len())
	}
}

func TestDensify(t *testing.T) {
	src := NewUniformSource(twoPasses, NewWorkerPool(3, testLogger()), Config{Step: time.Second})

	out, err := src.Densify(context.Background(), lisbon, []Window{
		{Start: at(300), End: at(900)},
		{Start: at(2200), End: at(2600)},
	})
	if err != nil {
		t.Fatalf("Densify failed: %v", err)
	}
	if len(out) != 2 || out[0].Len() != 601 || out[1].Len() != 401 {
		t.Fatalf("unexpected densified lengths")
	}

	res, err := passes.Run(out[1], 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	assertBounds(t, res, [][2]int{{2200, 2600}})
}

// TestModesAgreeOnISS runs both sources over a day of real SGP4 output. The
// event source may miss grazing passes shorter than its coarse step, but
// every pass it does find must match a uniform pass to the second.
func TestModesAgreeOnISS(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full-day propagation in short mode")
	}

	prop, err := NewSGP4Propagator(issLine1, issLine2, 25544)
	if err != nil {
		t.Fatalf("NewSGP4Propagator failed: %v", err)
	}
	w := Window{Start: epoch, End: epoch.Add(24 * time.Hour)}
	cfg := Config{Step: time.Second, CoarseStep: 30 * time.Second}

	uniform, err := NewUniformSource(prop, NewWorkerPool(4, testLogger()), cfg).Series(context.Background(), lisbon, w, 10)
	if err != nil {
		t.Fatalf("uniform Series failed: %v", err)
	}
	uRes, err := passes.Run(uniform, 10)
	if err != nil {
		t.Fatalf("uniform Run failed: %v", err)
	}
	if uRes.Status != passes.StatusPasses {
		t.Fatal("expected at least one ISS pass over Lisbon in a day")
	}

	events, err := NewEventSource(prop, cfg, testLogger()).Series(context.Background(), lisbon, w, 10)
	if err != nil {
		t.Fatalf("event Series failed: %v", err)
	}
	eRes, err := passes.Run(events, 10)
	if err != nil {
		t.Fatalf("event Run failed: %v", err)
	}
	if len(eRes.Passes) > len(uRes.Passes) {
		t.Fatalf("event mode found %d passes, uniform only %d", len(eRes.Passes), len(uRes.Passes))
	}

	for _, ep := range eRes.Passes {
		matched := false
		for _, up := range uRes.Passes {
			if ep.Summary.StartTime.Equal(up.Summary.StartTime) && ep.Summary.EndTime.Equal(up.Summary.EndTime) {
				matched = true
				break
			}
		}
		if !matched {
			t.Errorf("event pass %s..%s has no uniform counterpart", ep.Summary.StartTime, ep.Summary.EndTime)
		}
	}
}

func assertBounds(t *testing.T, res passes.Result, want [][2]int) {
	t.Helper()
	if len(res.Passes) != len(want) {
		t.Fatalf("got %d passes, want %d", len(res.Passes), len(want))
	}
	for i, w := range want {
		s := res.Passes[i].Summary
		if !s.StartTime.Equal(at(w[0])) || !s.EndTime.Equal(at(w[1])) {
			t.Errorf("pass %d spans %s..%s, want %s..%s", i, s.StartTime, s.EndTime, at(w[0]), at(w[1]))
		}
	}
}
