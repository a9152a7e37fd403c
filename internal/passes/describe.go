package passes

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Summary holds the display quantities of one pass.
type Summary struct {
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	PeakElevationDeg float64   `json:"peak_elevation_deg"`
	PeakTime         time.Time `json:"peak_time"`
	PeakAzimuthDeg   float64   `json:"peak_azimuth_deg"`
	DirectionSign    int       `json:"direction_sign"` // +1 azimuth increasing at peak, -1 decreasing
}

// Duration is the time between the first and last sample of the pass.
func (s Summary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Describe computes the summary of a pass. The peak is the event-mode peak
// marker when there is one, otherwise the highest sample (earliest on ties).
func Describe(p Pass) (Summary, error) {
	if p.series == nil || p.start < 0 || p.end < p.start || p.end >= len(p.series.samples) {
		return Summary{}, fmt.Errorf("%w: pass does not reference a valid series range", ErrMalformedSeries)
	}

	samples := p.Samples()
	peak := peakIndex(p, samples)
	top := samples[peak]

	return Summary{
		StartTime:        samples[0].Time,
		EndTime:          samples[len(samples)-1].Time,
		PeakElevationDeg: top.ElevationDeg,
		PeakTime:         top.Time,
		PeakAzimuthDeg:   top.AzimuthDeg,
		DirectionSign:    directionAt(samples, peak),
	}, nil
}

func peakIndex(p Pass, samples []Sample) int {
	if p.peak >= p.start && p.peak <= p.end {
		return p.peak - p.start
	}
	elevations := make([]float64, len(samples))
	for i, s := range samples {
		elevations[i] = s.ElevationDeg
	}
	return floats.MaxIdx(elevations)
}

// directionAt reports the direction of azimuth travel forward in time at
// sample i, using the predecessor when there is one and the successor
// otherwise. A single-sample pass has no reference and reports +1.
func directionAt(samples []Sample, i int) int {
	switch {
	case i > 0:
		return travelSign(samples[i-1].AzimuthDeg, samples[i].AzimuthDeg)
	case i+1 < len(samples):
		return travelSign(samples[i].AzimuthDeg, samples[i+1].AzimuthDeg)
	default:
		return 1
	}
}

// AzimuthDelta returns the signed shortest-arc change from one azimuth to
// another, in (-180, 180].
func AzimuthDelta(fromDeg, toDeg float64) float64 {
	d := toDeg - fromDeg
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// travelSign is +1 when azimuth increases along the shortest arc and -1 when
// it decreases. A stationary azimuth counts as increasing.
func travelSign(fromDeg, toDeg float64) int {
	if AzimuthDelta(fromDeg, toDeg) < 0 {
		return -1
	}
	return 1
}
