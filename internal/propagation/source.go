package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
)

// UniformSource samples the whole window at a fixed step, splitting it into
// one chunk per worker.
type UniformSource struct {
	prop       LookAngler
	pool       *WorkerPool
	step       time.Duration
	maxSamples int
}

// NewUniformSource creates a fixed-step source. step is rounded down to
// whole seconds, the propagator's resolution.
func NewUniformSource(prop LookAngler, pool *WorkerPool, cfg Config) *UniformSource {
	return &UniformSource{
		prop:       prop,
		pool:       pool,
		step:       cfg.Step.Truncate(time.Second),
		maxSamples: cfg.MaxSamples,
	}
}

// Series samples [w.Start, w.End]. minElevationDeg is unused: visibility is
// decided later by the segmenter.
func (s *UniformSource) Series(ctx context.Context, obs Observer, w Window, _ float64) (*passes.Series, error) {
	if s.step < time.Second {
		return nil, fmt.Errorf("uniform step must be at least 1s, got %s", s.step)
	}
	w = alignWindow(w)
	if w.End.Before(w.Start) {
		return nil, fmt.Errorf("window end %s is before start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}

	n := int(w.End.Sub(w.Start)/s.step) + 1
	if s.maxSamples > 0 && n > s.maxSamples {
		return nil, fmt.Errorf("window needs %d samples at %s step, limit is %d", n, s.step, s.maxSamples)
	}

	chunks, err := s.pool.SampleWindows(ctx, s.prop, obs, splitWindow(w.Start, n, s.step, s.pool.Workers()), s.step)
	if err != nil {
		return nil, err
	}

	samples := make([]passes.Sample, 0, n)
	for _, c := range chunks {
		samples = append(samples, c...)
	}
	return passes.NewUniformSeries(samples, s.step)
}

// Densify re-samples each window at the uniform step, one series per window.
// Used to draw event-mode passes at full resolution.
func (s *UniformSource) Densify(ctx context.Context, obs Observer, windows []Window) ([]*passes.Series, error) {
	aligned := make([]Window, len(windows))
	for i, w := range windows {
		aligned[i] = alignWindow(w)
	}

	chunks, err := s.pool.SampleWindows(ctx, s.prop, obs, aligned, s.step)
	if err != nil {
		return nil, err
	}

	out := make([]*passes.Series, len(chunks))
	for i, c := range chunks {
		series, err := passes.NewUniformSeries(c, s.step)
		if err != nil {
			return nil, fmt.Errorf("densify window %d: %w", i, err)
		}
		out[i] = series
	}
	return out, nil
}

// splitWindow divides n grid points starting at start into at most parts
// contiguous windows on the same grid.
func splitWindow(start time.Time, n int, step time.Duration, parts int) []Window {
	if parts < 1 {
		parts = 1
	}
	per := (n + parts - 1) / parts

	var out []Window
	for first := 0; first < n; first += per {
		last := first + per - 1
		if last > n-1 {
			last = n - 1
		}
		out = append(out, Window{
			Start: start.Add(time.Duration(first) * step),
			End:   start.Add(time.Duration(last) * step),
		})
	}
	return out
}

func alignWindow(w Window) Window {
	return Window{Start: w.Start.UTC().Truncate(time.Second), End: w.End.UTC().Truncate(time.Second)}
}

const fineStep = time.Second

// EventSource finds rise, peak and set events by a coarse scan refined to
// one second, without sampling the whole window densely.
type EventSource struct {
	prop   LookAngler
	coarse time.Duration
	logger *slog.Logger
}

// NewEventSource creates an event-driven source.
func NewEventSource(prop LookAngler, cfg Config, logger *slog.Logger) *EventSource {
	coarse := cfg.CoarseStep.Truncate(time.Second)
	if coarse < 2*fineStep {
		coarse = 30 * time.Second
	}
	return &EventSource{prop: prop, coarse: coarse, logger: logger}
}

// Series scans [w.Start, w.End] and returns the rise/peak/set events of every
// crossing of minElevationDeg. A pass already in progress at w.Start yields
// only its peak and set; one still in progress at w.End yields its rise and
// peak. Passes shorter than the coarse step can be missed.
func (s *EventSource) Series(ctx context.Context, obs Observer, w Window, minElevationDeg float64) (*passes.Series, error) {
	w = alignWindow(w)
	if w.End.Before(w.Start) {
		return nil, fmt.Errorf("window end %s is before start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}

	var (
		events    []passes.Event
		above     bool
		riseAt    time.Time
		best      passes.Sample
		lookups   int
		prevTime  time.Time
		firstScan = true
	)

	look := func(t time.Time) (passes.Sample, error) {
		lookups++
		return s.prop.LookAt(obs, t)
	}

	t := w.Start
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		smp, err := look(t)
		if err != nil {
			return nil, err
		}
		nowAbove := smp.ElevationDeg >= minElevationDeg

		switch {
		case firstScan && nowAbove:
			above, best = true, smp
		case !above && nowAbove:
			rise, err := s.bisect(look, prevTime, t, minElevationDeg, true)
			if err != nil {
				return nil, err
			}
			events = append(events, passes.Event{Kind: passes.EventRise, Sample: rise})
			above, riseAt, best = true, rise.Time, rise
			if smp.ElevationDeg > best.ElevationDeg {
				best = smp
			}
		case above && nowAbove:
			if smp.ElevationDeg > best.ElevationDeg {
				best = smp
			}
		case above && !nowAbove:
			set, err := s.bisect(look, prevTime, t, minElevationDeg, false)
			if err != nil {
				return nil, err
			}
			events, err = s.closePass(look, events, best, riseAt, w.Start, set)
			if err != nil {
				return nil, err
			}
			above, riseAt = false, time.Time{}
		}
		firstScan = false

		if !t.Before(w.End) {
			break
		}
		prevTime = t
		t = t.Add(s.coarse)
		if t.After(w.End) {
			t = w.End
		}
	}

	if above {
		// Still up at the horizon of the query: report rise and peak only.
		peak, err := s.refinePeak(look, best, riseAt, w.Start, w.End)
		if err != nil {
			return nil, err
		}
		if peak.Time.After(lastTime(events)) && !peak.Time.Equal(w.End) {
			events = append(events, passes.Event{Kind: passes.EventPeak, Sample: peak})
		}
	}

	s.logger.Debug("event scan complete",
		"observer", obs.Name,
		"events", len(events),
		"lookups", lookups,
		"coarse_step_seconds", s.coarse.Seconds(),
	)

	return passes.NewEventSeries(events)
}

// closePass appends the peak and set of a pass. riseAt is zero when the
// pass was already in progress at windowStart.
func (s *EventSource) closePass(look func(time.Time) (passes.Sample, error), events []passes.Event, best passes.Sample, riseAt, windowStart time.Time, set passes.Sample) ([]passes.Event, error) {
	if !riseAt.IsZero() && !set.Time.After(riseAt) {
		// Visible for a single second: too short to report as rise and set.
		return events[:len(events)-1], nil
	}

	lo := riseAt
	if lo.IsZero() {
		lo = windowStart
	}
	peak, err := s.refinePeak(look, best, riseAt, lo, set.Time)
	if err != nil {
		return nil, err
	}

	if peak.Time.After(lastTime(events)) && peak.Time.Before(set.Time) && (riseAt.IsZero() || peak.Time.After(riseAt)) {
		events = append(events, passes.Event{Kind: passes.EventPeak, Sample: peak})
	}
	if set.Time.After(lastTime(events)) {
		events = append(events, passes.Event{Kind: passes.EventSet, Sample: set})
	}
	return events, nil
}

// bisect narrows the threshold crossing in (lo, hi] to one second. For a
// rise it returns the first sample at or above the threshold; for a set, the
// last one.
func (s *EventSource) bisect(look func(time.Time) (passes.Sample, error), lo, hi time.Time, minElevationDeg float64, rising bool) (passes.Sample, error) {
	for hi.Sub(lo) > fineStep {
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
		if !mid.After(lo) {
			mid = lo.Add(fineStep)
		}
		smp, err := look(mid)
		if err != nil {
			return passes.Sample{}, err
		}
		if (smp.ElevationDeg >= minElevationDeg) == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	if rising {
		return look(hi)
	}
	return look(lo)
}

// refinePeak scans one second at a time within one coarse step of the
// coarse maximum, clamped to [lo, hi].
func (s *EventSource) refinePeak(look func(time.Time) (passes.Sample, error), coarseBest passes.Sample, riseAt, lo, hi time.Time) (passes.Sample, error) {
	from := coarseBest.Time.Add(-s.coarse)
	to := coarseBest.Time.Add(s.coarse)
	if !riseAt.IsZero() && from.Before(riseAt) {
		from = riseAt
	}
	if from.Before(lo) {
		from = lo
	}
	if to.After(hi) {
		to = hi
	}

	best := coarseBest
	for t := from; !t.After(to); t = t.Add(fineStep) {
		smp, err := look(t)
		if err != nil {
			return passes.Sample{}, err
		}
		if smp.ElevationDeg > best.ElevationDeg || (smp.ElevationDeg == best.ElevationDeg && smp.Time.Before(best.Time)) {
			best = smp
		}
	}
	return best, nil
}

func lastTime(events []passes.Event) time.Time {
	if len(events) == 0 {
		return time.Time{}
	}
	return events[len(events)-1].Time
}
