package propagation

import (
	"context"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
)

// Observer is a ground location.
type Observer struct {
	Name   string
	LatDeg float64
	LonDeg float64
	AltM   float64 // meters above the WGS-84 ellipsoid
}

// latLong returns the observer position in the radians go-satellite expects.
func (o Observer) latLong() satellite.LatLong {
	return satellite.LatLong{
		Latitude:  o.LatDeg * math.Pi / 180.0,
		Longitude: o.LonDeg * math.Pi / 180.0,
	}
}

// LookAngler returns the topocentric look angles of one satellite from an
// observer at time t.
type LookAngler interface {
	LookAt(obs Observer, t time.Time) (passes.Sample, error)
}

// Window is an inclusive time span to sample.
type Window struct {
	Start time.Time
	End   time.Time
}

// Config holds sampling configuration loaded from environment variables.
type Config struct {
	Workers    int           // Worker pool size (default: runtime.NumCPU())
	Step       time.Duration // Uniform sampling step (default: 1s)
	CoarseStep time.Duration // Event search coarse step (default: 30s)
	MaxSamples int           // Upper bound on samples per request (default: 1,000,000)
}

// Source builds the series for one prediction request.
type Source interface {
	Series(ctx context.Context, obs Observer, w Window, minElevationDeg float64) (*passes.Series, error)
}
