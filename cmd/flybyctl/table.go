package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/history"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/predict"
)

const tableTime = "2006-01-02 15:04:05"

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	emptyColor   = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	highColor    = color.New(color.FgGreen, color.Bold) // peak at or above 60 degrees
)

// printReport writes a heading and one row per pass.
func printReport(w io.Writer, r predict.Report) error {
	headingColor.Fprintf(w, "%s over %s\n", r.Spacecraft, r.Location)
	fmt.Fprintf(w, "%s to %s UTC, above %g deg, %s sampling\n",
		r.Start.UTC().Format(tableTime), r.End.UTC().Format(tableTime), r.MinElevationDeg, r.Mode)

	if len(r.Passes) == 0 {
		emptyColor.Fprintln(w, "*** No passes in the specified time range! ***")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Pass", "Start (UTC)", "End (UTC)", "Duration", "Peak El", "Peak Az", "Direction", "Chart"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, p := range r.Passes {
		s := p.Summary
		peak := fmt.Sprintf("%.1f", s.PeakElevationDeg)
		if s.PeakElevationDeg >= 60 {
			peak = highColor.Sprint(peak)
		}
		chart := p.Chart
		if p.Error != "" {
			chart = errorColor.Sprint(p.Error)
		}
		data = append(data, []string{
			strconv.Itoa(p.Index),
			s.StartTime.UTC().Format(tableTime),
			s.EndTime.UTC().Format(tableTime),
			s.Duration().Round(time.Second).String(),
			peak,
			fmt.Sprintf("%.1f", s.PeakAzimuthDeg),
			direction(s.DirectionSign),
			chart,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// printRuns writes one row per recorded run, newest first.
func printRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		emptyColor.Fprintln(w, "No runs recorded.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Run", "Created (UTC)", "Location", "Spacecraft", "Mode", "Days", "Min El", "Passes", "Took"})

	var data [][]string
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		data = append(data, []string{
			id,
			r.CreatedAt.UTC().Format(tableTime),
			r.Location,
			r.Spacecraft,
			r.Mode,
			strconv.FormatFloat(r.Days, 'g', -1, 64),
			strconv.FormatFloat(r.MinElevationDeg, 'g', -1, 64),
			strconv.Itoa(len(r.Passes)),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func direction(sign int) string {
	switch {
	case sign > 0:
		return "cw"
	case sign < 0:
		return "ccw"
	default:
		return "-"
	}
}
