package passes

import "fmt"

// Classify returns one flag per sample: true when its elevation is at or
// above minElevationDeg. The bound is inclusive so a satellite sitting on
// the threshold does not flicker in and out of visibility.
func Classify(s *Series, minElevationDeg float64) ([]bool, error) {
	if err := validateThreshold(minElevationDeg); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: nil series", ErrMalformedSeries)
	}
	return classify(s.samples, minElevationDeg), nil
}

func classify(samples []Sample, minElevationDeg float64) []bool {
	flags := make([]bool, len(samples))
	for i, smp := range samples {
		flags[i] = smp.ElevationDeg >= minElevationDeg
	}
	return flags
}
