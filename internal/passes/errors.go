package passes

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidThreshold is returned for a minimum elevation outside
	// [-90, 90] or NaN.
	ErrInvalidThreshold = errors.New("invalid visibility threshold")

	// ErrMalformedSeries is returned for samples that are out of order,
	// out of range, or an event sequence that does not alternate.
	ErrMalformedSeries = errors.New("malformed sample series")
)

func validateThreshold(minElevationDeg float64) error {
	if math.IsNaN(minElevationDeg) || minElevationDeg < -90 || minElevationDeg > 90 {
		return fmt.Errorf("%w: %v is outside [-90, 90]", ErrInvalidThreshold, minElevationDeg)
	}
	return nil
}
