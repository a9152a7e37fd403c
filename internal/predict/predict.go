// Package predict turns a location, a spacecraft and a time window into
// described passes with one chart each.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/catalog"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/history"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/metrics"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/propagation"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/render"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/tle"
)

// ErrInvalidRequest wraps every request validation failure.
var ErrInvalidRequest = errors.New("invalid prediction request")

// TLESource resolves element sets by catalog number.
type TLESource interface {
	Lookup(ctx context.Context, noradID int) (tle.Entry, error)
}

// ChartWriter stores rendered charts.
type ChartWriter interface {
	RenderFile(prefix string, c render.Chart) (string, error)
	Prune() error
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, r history.Run) error
}

// Config holds prediction limits and sampling settings.
type Config struct {
	Sampling        propagation.Config
	MaxDays         float64     // Longest window a request may ask for (default: 3)
	MinElevationDeg float64     // Threshold used when a request leaves it unset (default: 10)
	Mode            passes.Mode // Mode used when a request leaves it unset (default: event)
}

// Request is one prediction query. Zero Start means now; nil MinElevationDeg
// and Mode fall back to the configured defaults.
type Request struct {
	Location        catalog.Location
	Spacecraft      catalog.Spacecraft
	Start           time.Time
	Days            float64
	MinElevationDeg *float64
	Mode            *passes.Mode
}

// PassReport is one pass of a Report. Chart is the chart file name, empty
// when drawing failed or charts are disabled; Error says why.
type PassReport struct {
	Index   int            `json:"index"`
	Summary passes.Summary `json:"summary"`
	Chart   string         `json:"chart,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Report is the outcome of a prediction.
type Report struct {
	RunID           string        `json:"run_id"`
	Location        string        `json:"location"`
	Spacecraft      string        `json:"spacecraft"`
	NORADID         int           `json:"norad_id"`
	Mode            passes.Mode   `json:"mode"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	MinElevationDeg float64       `json:"min_elevation_deg"`
	TLEEpoch        time.Time     `json:"tle_epoch"`
	Status          passes.Status `json:"status"`
	Passes          []PassReport  `json:"passes"`
}

// Predictor runs predictions. Charts and history are optional.
type Predictor struct {
	cfg     Config
	tles    TLESource
	charts  ChartWriter
	history Recorder
	pool    *propagation.WorkerPool
	logger  *slog.Logger

	now           func() time.Time
	newPropagator func(tle.Entry) (propagation.LookAngler, error)
}

// New creates a Predictor. charts and history may be nil.
func New(cfg Config, tles TLESource, charts ChartWriter, history Recorder, logger *slog.Logger) *Predictor {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 3
	}
	if cfg.Sampling.Step <= 0 {
		cfg.Sampling.Step = time.Second
	}
	return &Predictor{
		cfg:     cfg,
		tles:    tles,
		charts:  charts,
		history: history,
		pool:    propagation.NewWorkerPool(cfg.Sampling.Workers, logger),
		logger:  logger,
		now:     time.Now,
		newPropagator: func(e tle.Entry) (propagation.LookAngler, error) {
			return propagation.NewSGP4Propagator(e.Line1, e.Line2, e.NORADID)
		},
	}
}

// Config returns the effective configuration.
func (p *Predictor) Config() Config { return p.cfg }

// Predict resolves the spacecraft's TLE, samples the window, segments and
// describes the passes, draws one chart per pass and records the run.
func (p *Predictor) Predict(ctx context.Context, req Request) (Report, error) {
	started := time.Now()

	minEl := p.cfg.MinElevationDeg
	if req.MinElevationDeg != nil {
		minEl = *req.MinElevationDeg
	}
	mode := p.cfg.Mode
	if req.Mode != nil {
		mode = *req.Mode
	}
	if err := p.validate(req, minEl, mode); err != nil {
		return Report{}, err
	}

	start := req.Start
	if start.IsZero() {
		start = p.now()
	}
	start = start.UTC().Truncate(time.Second)
	window := propagation.Window{
		Start: start,
		End:   start.Add(time.Duration(req.Days * float64(24*time.Hour))).Truncate(time.Second),
	}

	entry, err := p.tles.Lookup(ctx, req.Spacecraft.NORADID)
	if err != nil {
		return Report{}, fmt.Errorf("resolving TLE for %s: %w", req.Spacecraft.Name, err)
	}
	prop, err := p.newPropagator(entry)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		RunID:           history.NewRunID(),
		Location:        req.Location.Name,
		Spacecraft:      req.Spacecraft.Name,
		NORADID:         req.Spacecraft.NORADID,
		Mode:            mode,
		Start:           window.Start,
		End:             window.End,
		MinElevationDeg: minEl,
		TLEEpoch:        entry.Epoch,
	}
	logger := p.logger.With("run_id", report.RunID, "location", report.Location, "norad_id", report.NORADID)

	obs := propagation.Observer{
		Name:   req.Location.Name,
		LatDeg: req.Location.LatDeg,
		LonDeg: req.Location.LonDeg,
		AltM:   req.Location.AltM,
	}
	found, err := p.findPasses(ctx, prop, obs, window, minEl, mode, logger)
	if err != nil {
		return Report{}, err
	}

	report.Status = passes.StatusEmpty
	if len(found) > 0 {
		report.Status = passes.StatusPasses
	}
	report.Passes = p.drawCharts(report, found, logger)

	elapsed := time.Since(started)
	metrics.ObservePrediction(mode.String(), report.Status.String(), elapsed, len(found))
	p.record(ctx, req, report, elapsed, logger)

	logger.Info("prediction complete",
		"spacecraft", report.Spacecraft,
		"mode", mode.String(),
		"days", req.Days,
		"min_elevation_deg", minEl,
		"passes", len(found),
		"duration_ms", elapsed.Milliseconds(),
	)
	return report, nil
}

func (p *Predictor) validate(req Request, minEl float64, mode passes.Mode) error {
	switch {
	case math.IsNaN(req.Days) || req.Days <= 0 || req.Days > p.cfg.MaxDays:
		return fmt.Errorf("%w: duration %v days outside (0, %v]", ErrInvalidRequest, req.Days, p.cfg.MaxDays)
	case math.IsNaN(minEl) || minEl < -90 || minEl > 90:
		return fmt.Errorf("%w: %w: %v", ErrInvalidRequest, passes.ErrInvalidThreshold, minEl)
	case mode != passes.ModeUniform && mode != passes.ModeEvent:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidRequest, mode)
	case req.Spacecraft.NORADID <= 0:
		return fmt.Errorf("%w: spacecraft %q has no NORAD ID", ErrInvalidRequest, req.Spacecraft.Name)
	case req.Location.LatDeg < -90 || req.Location.LatDeg > 90 || req.Location.LonDeg < -180 || req.Location.LonDeg > 180:
		return fmt.Errorf("%w: location %q coordinates out of range", ErrInvalidRequest, req.Location.Name)
	}
	return nil
}

// drawable is a described pass with the samples to draw.
type drawable struct {
	summary passes.Summary
	samples []passes.Sample
}

func (p *Predictor) findPasses(ctx context.Context, prop propagation.LookAngler, obs propagation.Observer, w propagation.Window, minEl float64, mode passes.Mode, logger *slog.Logger) ([]drawable, error) {
	uniform := propagation.NewUniformSource(prop, p.pool, p.cfg.Sampling)

	if mode == passes.ModeUniform {
		series, err := uniform.Series(ctx, obs, w, minEl)
		if err != nil {
			return nil, err
		}
		res, err := passes.Run(series, minEl)
		if err != nil {
			return nil, err
		}
		out := make([]drawable, len(res.Passes))
		for i, d := range res.Passes {
			out[i] = drawable{summary: d.Summary, samples: d.Pass.Samples()}
		}
		return out, nil
	}

	events, err := propagation.NewEventSource(prop, p.cfg.Sampling, logger).Series(ctx, obs, w, minEl)
	if err != nil {
		return nil, err
	}
	res, err := passes.Run(events, minEl)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}

	// Re-sample each rise..set span at the uniform step for drawing.
	windows := make([]propagation.Window, len(res.Passes))
	for i, d := range res.Passes {
		windows[i] = propagation.Window{Start: d.Summary.StartTime, End: d.Summary.EndTime}
	}
	dense, err := uniform.Densify(ctx, obs, windows)
	if err != nil {
		return nil, err
	}

	out := make([]drawable, 0, len(res.Passes))
	for i, series := range dense {
		event := res.Passes[i].Summary
		fine, err := passes.Run(series, minEl)
		if err != nil {
			return nil, err
		}
		if fine.Empty() {
			logger.Warn("densified pass fell below threshold, keeping event summary",
				"pass", i+1, "start", event.StartTime.Format(time.RFC3339))
			out = append(out, drawable{summary: event})
			continue
		}
		best := fine.Passes[0]
		for _, d := range fine.Passes[1:] {
			if d.Pass.Len() > best.Pass.Len() {
				best = d
			}
		}
		logger.Debug("pass densified",
			"pass", i+1,
			"event_peak_elevation_deg", event.PeakElevationDeg,
			"dense_peak_elevation_deg", best.Summary.PeakElevationDeg,
			"samples", best.Pass.Len(),
		)
		out = append(out, drawable{summary: best.Summary, samples: best.Pass.Samples()})
	}
	return out, nil
}

func (p *Predictor) drawCharts(report Report, found []drawable, logger *slog.Logger) []PassReport {
	out := make([]PassReport, len(found))
	for i, f := range found {
		out[i] = PassReport{Index: i + 1, Summary: f.summary}
		if p.charts == nil {
			continue
		}
		if len(f.samples) == 0 {
			out[i].Error = "no samples to draw"
			continue
		}
		name, err := p.charts.RenderFile(report.RunID[:8], render.Chart{
			Spacecraft:      report.Spacecraft,
			Location:        report.Location,
			Index:           i + 1,
			MinElevationDeg: report.MinElevationDeg,
			Samples:         f.samples,
			Summary:         f.summary,
		})
		if err != nil {
			logger.Warn("chart render failed", "pass", i+1, "error", err)
			out[i].Error = err.Error()
			continue
		}
		out[i].Chart = name
	}
	if p.charts != nil && len(found) > 0 {
		if err := p.charts.Prune(); err != nil {
			logger.Warn("chart prune failed", "error", err)
		}
	}
	return out
}

func (p *Predictor) record(ctx context.Context, req Request, report Report, elapsed time.Duration, logger *slog.Logger) {
	if p.history == nil {
		return
	}
	run := history.Run{
		ID:              report.RunID,
		CreatedAt:       p.now().UTC(),
		Location:        report.Location,
		Spacecraft:      report.Spacecraft,
		NORADID:         report.NORADID,
		Mode:            report.Mode.String(),
		Days:            req.Days,
		MinElevationDeg: report.MinElevationDeg,
		Status:          report.Status.String(),
		DurationMs:      elapsed.Milliseconds(),
	}
	for _, pr := range report.Passes {
		run.Passes = append(run.Passes, pr.Summary)
	}
	if err := p.history.Record(ctx, run); err != nil {
		logger.Warn("failed to record run history", "error", err)
	}
}
