package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/catalog"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/history"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/predict"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/propagation"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/render"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/tle"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "List the visible passes of a spacecraft over a location",
	Long: `Predict the passes of a spacecraft over a catalog location.

Examples:
  # ISS over Lisbon for the next day
  flybyctl predict --location Lisbon --spacecraft 25544

  # Tiangong over Ottawa for three days, every-second sampling, with charts
  flybyctl predict --location Ottawa --spacecraft "Tiangong (China)" \
    --days 3 --mode uniform --chart-dir ./charts`,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringP("location", "l", "", "Location name from the catalog")
	f.StringP("spacecraft", "s", "International Space Station (USA)", "Spacecraft name or NORAD id")
	f.Float64P("days", "d", 1, "Length of the prediction window in days")
	f.Float64("min-el", 10, "Minimum elevation in degrees")
	f.String("mode", "event", "Sampling mode: event or uniform")
	f.String("start", "", "Window start in RFC 3339 (default: now)")
	f.Float64("max-days", 10, "Longest window accepted")
	f.Int("workers", runtime.NumCPU(), "Propagation workers for uniform sampling")
	f.String("chart-dir", "", "Write one PNG chart per pass into this directory")
	f.String("tle-url", "", "GP endpoint for element sets (default: CelesTrak)")
	f.String("tle-cache-dir", "/tmp/flyby/tle", "Element set cache directory")
	f.Duration("tle-max-age", 24*time.Hour, "Use cached element sets younger than this")
	f.StringP("output", "o", "text", "Output format: text or json")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cat := catalog.Default()
	if path := viper.GetString("catalog"); path != "" {
		var err error
		if cat, err = catalog.Load(path); err != nil {
			return err
		}
	}
	if viper.GetString("location") == "" {
		return fmt.Errorf("--location is required, one of %v", cat.LocationNames())
	}
	loc, err := cat.LookupLocation(viper.GetString("location"))
	if err != nil {
		return err
	}
	sc, err := cat.LookupSpacecraft(viper.GetString("spacecraft"))
	if err != nil {
		return err
	}
	mode, err := passes.ParseMode(viper.GetString("mode"))
	if err != nil {
		return err
	}
	output := viper.GetString("output")
	if output != "text" && output != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", output)
	}

	req := predict.Request{
		Location:   loc,
		Spacecraft: sc,
		Days:       viper.GetFloat64("days"),
		Mode:       &mode,
	}
	minEl := viper.GetFloat64("min-el")
	req.MinElevationDeg = &minEl
	if v := viper.GetString("start"); v != "" {
		if req.Start, err = time.Parse(time.RFC3339, v); err != nil {
			return fmt.Errorf("start %q is not an RFC 3339 time", v)
		}
	}

	fetcher := tle.NewFetcher(viper.GetString("tle-url"), logger)
	tleCache := tle.NewCache(viper.GetString("tle-cache-dir"), 5, logger)
	tles := tle.NewSource(fetcher, tleCache, viper.GetDuration("tle-max-age"), logger)

	var charts predict.ChartWriter
	if dir := viper.GetString("chart-dir"); dir != "" {
		charts = render.NewDir(render.NewRenderer(render.DefaultStyle()), dir, 1000, logger)
	}

	var recorder predict.Recorder
	if path := viper.GetString("history-db"); path != "" {
		store, err := history.Open(path, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder = store
	}

	p := predict.New(predict.Config{
		Sampling: propagation.Config{
			Workers:    viper.GetInt("workers"),
			Step:       time.Second,
			CoarseStep: 30 * time.Second,
		},
		MaxDays:         viper.GetFloat64("max-days"),
		MinElevationDeg: minEl,
		Mode:            mode,
	}, tles, charts, recorder, logger)

	report, err := p.Predict(cmd.Context(), req)
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(os.Stdout, report)
}
