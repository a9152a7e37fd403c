package passes

import (
	"fmt"
	"time"
)

// Pass is a read-only view of a maximal run of visible samples in a Series.
// Indices are inclusive.
type Pass struct {
	series *Series
	start  int
	end    int
	peak   int // series index of the event-mode peak marker, -1 if none
}

// StartIndex returns the series index of the first sample of the pass.
func (p Pass) StartIndex() int { return p.start }

// EndIndex returns the series index of the last sample of the pass.
func (p Pass) EndIndex() int { return p.end }

// Len returns the number of samples in the pass.
func (p Pass) Len() int { return p.end - p.start + 1 }

// StartTime is the timestamp of the first sample.
func (p Pass) StartTime() time.Time { return p.series.samples[p.start].Time }

// EndTime is the timestamp of the last sample.
func (p Pass) EndTime() time.Time { return p.series.samples[p.end].Time }

// Samples returns the pass samples. The slice shares the parent series'
// storage and must not be modified.
func (p Pass) Samples() []Sample {
	return p.series.samples[p.start : p.end+1 : p.end+1]
}

// Segment splits the series into passes at or above minElevationDeg, ordered
// by start time. An empty series, or one that never reaches the threshold,
// yields no passes and no error.
func Segment(s *Series, minElevationDeg float64) ([]Pass, error) {
	if err := validateThreshold(minElevationDeg); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: nil series", ErrMalformedSeries)
	}

	switch s.mode {
	case ModeUniform:
		return segmentUniform(s, minElevationDeg), nil
	case ModeEvent:
		return segmentEvents(s, minElevationDeg)
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrMalformedSeries, s.mode)
	}
}

// segmentUniform walks the visible samples only. Two consecutive visible
// samples belong to the same pass when they are neighbours in the series and
// no more than one step apart; anything else means an invisible gap.
func segmentUniform(s *Series, minElevationDeg float64) []Pass {
	flags := classify(s.samples, minElevationDeg)

	var out []Pass
	start, prev := -1, -1
	for i, visible := range flags {
		if !visible {
			continue
		}
		switch {
		case start < 0:
			start = i
		case i != prev+1 || s.samples[i].Time.Sub(s.samples[prev].Time) > s.step:
			out = append(out, Pass{series: s, start: start, end: prev, peak: -1})
			start = i
		}
		prev = i
	}
	if start >= 0 {
		out = append(out, Pass{series: s, start: start, end: prev, peak: -1})
	}
	return out
}

// segmentEvents pairs each rise with the following set. Markers seen before
// the first rise belong to a pass already in progress when the window opened
// and are skipped; a rise left open at the end of the window is dropped.
// Only complete rise..set pairs are reported, and a pair with any marker
// below minElevationDeg is dropped: its markers were found against a lower
// threshold and cannot be moved to this one.
func segmentEvents(s *Series, minElevationDeg float64) ([]Pass, error) {
	var out []Pass
	open, peak := -1, -1
	seenRise := false

	for i, kind := range s.kinds {
		switch kind {
		case EventRise:
			if open >= 0 {
				return nil, fmt.Errorf("%w: rise at event %d while pass from event %d is still open", ErrMalformedSeries, i, open)
			}
			open, peak, seenRise = i, -1, true

		case EventPeak:
			if open < 0 {
				if seenRise {
					return nil, fmt.Errorf("%w: peak at event %d without a preceding rise", ErrMalformedSeries, i)
				}
				continue
			}
			if peak >= 0 {
				return nil, fmt.Errorf("%w: second peak at event %d for pass from event %d", ErrMalformedSeries, i, open)
			}
			peak = i

		case EventSet:
			if open < 0 {
				if seenRise {
					return nil, fmt.Errorf("%w: set at event %d without a preceding rise", ErrMalformedSeries, i)
				}
				continue
			}
			if visibleThroughout(s.samples[open:i+1], minElevationDeg) {
				out = append(out, Pass{series: s, start: open, end: i, peak: peak})
			}
			open, peak = -1, -1
		}
	}

	return out, nil
}

func visibleThroughout(samples []Sample, minElevationDeg float64) bool {
	for _, smp := range samples {
		if smp.ElevationDeg < minElevationDeg {
			return false
		}
	}
	return true
}
