// Package passes turns a time-ordered series of topocentric look angles into
// discrete visibility passes and describes each one for display.
//
// A Series is produced once per prediction request, either as fixed-step
// samples (ModeUniform) or as rise/peak/set markers (ModeEvent). Segment finds
// the passes, Describe computes the per-pass summary, and Run does both and
// tags the outcome so "no passes" is never confused with an error.
package passes

import (
	"fmt"
	"math"
	"time"
)

// Mode identifies how the samples of a Series were produced.
type Mode int

const (
	// ModeUniform is a dense stream of samples at a fixed nominal step.
	ModeUniform Mode = iota
	// ModeEvent is a flat sequence of rise, peak and set markers.
	ModeEvent
)

// String returns the mode name used in configuration and logs.
func (m Mode) String() string {
	switch m {
	case ModeUniform:
		return "uniform"
	case ModeEvent:
		return "event"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode as its name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode parses "uniform" or "event".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "uniform":
		return ModeUniform, nil
	case "event":
		return ModeEvent, nil
	default:
		return 0, fmt.Errorf("unknown sampling mode %q (want uniform or event)", s)
	}
}

// EventKind marks a sample of an event-mode series.
type EventKind int

const (
	EventRise EventKind = iota
	EventPeak
	EventSet
)

func (k EventKind) String() string {
	switch k {
	case EventRise:
		return "rise"
	case EventPeak:
		return "peak"
	case EventSet:
		return "set"
	default:
		return "?"
	}
}

// Sample is one observation of the satellite from the ground location.
type Sample struct {
	Time         time.Time `json:"time"`
	ElevationDeg float64   `json:"elevation_deg"` // -90..90, 0 = horizon
	AzimuthDeg   float64   `json:"azimuth_deg"`   // 0..360, 0 = North, clockwise
}

// Event is a rise, peak or set marker emitted by an event-driven source.
type Event struct {
	Kind EventKind
	Sample
}

// Series is an immutable, strictly time-ordered sequence of samples for one
// query. Passes derived from it reference its samples and never outlive it.
type Series struct {
	mode    Mode
	step    time.Duration
	samples []Sample
	kinds   []EventKind // parallel to samples in ModeEvent
}

// NewUniformSeries validates samples taken at the nominal step and returns a
// Series that owns a private copy of them. An empty slice is a valid series.
func NewUniformSeries(samples []Sample, step time.Duration) (*Series, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: step %s must be positive", ErrMalformedSeries, step)
	}
	if err := validateSamples(samples); err != nil {
		return nil, err
	}

	owned := make([]Sample, len(samples))
	copy(owned, samples)
	return &Series{mode: ModeUniform, step: step, samples: owned}, nil
}

// NewEventSeries validates a flat rise/peak/set sequence and returns a Series
// owning a private copy of it.
func NewEventSeries(events []Event) (*Series, error) {
	samples := make([]Sample, len(events))
	kinds := make([]EventKind, len(events))
	for i, e := range events {
		if e.Kind < EventRise || e.Kind > EventSet {
			return nil, fmt.Errorf("%w: event %d has unknown kind %d", ErrMalformedSeries, i, e.Kind)
		}
		samples[i] = e.Sample
		kinds[i] = e.Kind
	}
	if err := validateSamples(samples); err != nil {
		return nil, err
	}
	return &Series{mode: ModeEvent, samples: samples, kinds: kinds}, nil
}

func validateSamples(samples []Sample) error {
	for i, s := range samples {
		if math.IsNaN(s.ElevationDeg) || s.ElevationDeg < -90 || s.ElevationDeg > 90 {
			return fmt.Errorf("%w: sample %d elevation %v outside [-90, 90]", ErrMalformedSeries, i, s.ElevationDeg)
		}
		if math.IsNaN(s.AzimuthDeg) || s.AzimuthDeg < 0 || s.AzimuthDeg >= 360 {
			return fmt.Errorf("%w: sample %d azimuth %v outside [0, 360)", ErrMalformedSeries, i, s.AzimuthDeg)
		}
		if i > 0 && !s.Time.After(samples[i-1].Time) {
			return fmt.Errorf("%w: sample %d at %s is not after sample %d at %s",
				ErrMalformedSeries, i, s.Time.Format(time.RFC3339Nano), i-1, samples[i-1].Time.Format(time.RFC3339Nano))
		}
	}
	return nil
}

// Mode reports how the series was produced.
func (s *Series) Mode() Mode { return s.mode }

// Step is the nominal sampling step. Zero for event-mode series.
func (s *Series) Step() time.Duration { return s.step }

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.samples) }

// At returns sample i.
func (s *Series) At(i int) Sample { return s.samples[i] }

// Kind returns the event kind of sample i. Uniform series carry no kinds,
// so calling Kind on one panics like an out-of-range At.
func (s *Series) Kind(i int) EventKind {
	if s.mode != ModeEvent {
		panic(fmt.Sprintf("passes: Kind called on a %s series", s.mode))
	}
	return s.kinds[i]
}

// Samples returns the underlying samples. Callers must not modify the slice.
func (s *Series) Samples() []Sample { return s.samples }
