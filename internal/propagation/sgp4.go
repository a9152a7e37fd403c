package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
)

// SGP4 library: github.com/joshuaferrara/go-satellite. Pure Go, TEME output,
// and ECIToLookAngles for the topocentric step.
//
// Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected from NaN/Inf or unreasonable
// position magnitudes.

// SGP4Propagator wraps the go-satellite library for a single satellite.
// Safe for concurrent use: the satellite record is only ever copied.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator creates an SGP4 propagator from TLE lines.
//
// The lines are pre-validated because go-satellite calls log.Fatal on
// malformed input.
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// NORADID returns the catalog number of the propagated satellite.
func (p *SGP4Propagator) NORADID() int { return p.noradID }

// LookAt propagates to t (truncated to whole seconds, the resolution of the
// library) and returns elevation and azimuth in degrees as seen by obs.
func (p *SGP4Propagator) LookAt(obs Observer, t time.Time) (passes.Sample, error) {
	t = t.UTC().Truncate(time.Second)
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, _ := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return passes.Sample{}, fmt.Errorf("sgp4 propagation failed for NORAD %d at %s: output is NaN/Inf", p.noradID, t.Format(time.RFC3339))
	}

	// Position magnitude should be between ~6200km and ~50000km.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return passes.Sample{}, fmt.Errorf("sgp4 propagation failed for NORAD %d at %s: unreasonable position magnitude %.1f km", p.noradID, t.Format(time.RFC3339), mag)
	}

	jday := satellite.JDay(year, int(month), day, hour, min, sec)
	la := satellite.ECIToLookAngles(pos, obs.latLong(), obs.AltM/1000.0, jday)

	return passes.Sample{
		Time:         t,
		ElevationDeg: clamp(la.El*180.0/math.Pi, -90, 90),
		AzimuthDeg:   normalizeAzimuth(la.Az * 180.0 / math.Pi),
	}, nil
}

// normalizeAzimuth folds an angle in degrees into [0, 360).
func normalizeAzimuth(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
