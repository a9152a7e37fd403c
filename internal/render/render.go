// Package render draws one azimuth/elevation chart per pass.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
)

// Chart is everything drawn for one pass.
type Chart struct {
	Spacecraft      string
	Location        string
	Index           int // 1-based pass number within the request
	MinElevationDeg float64
	Samples         []passes.Sample
	Summary         passes.Summary
}

// Title is the chart heading, e.g. "ISS, Lisbon: Pass 2".
func (c Chart) Title() string {
	return fmt.Sprintf("%s, %s: Pass %d", c.Spacecraft, c.Location, c.Index)
}

// Caption is the start/end line printed under the azimuth axis.
func (c Chart) Caption() string {
	const layout = "2006-01-02 15:04:05"
	return fmt.Sprintf("Start: %s    |    End: %s UTC",
		c.Summary.StartTime.UTC().Truncate(time.Second).Format(layout),
		c.Summary.EndTime.UTC().Truncate(time.Second).Format(layout))
}

// Style controls the look of a chart.
type Style struct {
	Width        vg.Length
	Height       vg.Length
	DPI          int
	FontSize     vg.Length
	TitleSize    vg.Length
	MarkerRadius vg.Length
	Background   color.Color
	Foreground   color.Color
	Marker       color.Color
	ArrowLength  float64 // degrees of azimuth
}

// DefaultStyle is a 5x3 inch dark chart at 175 DPI.
func DefaultStyle() Style {
	return Style{
		Width:        5 * vg.Inch,
		Height:       3 * vg.Inch,
		DPI:          175,
		FontSize:     vg.Points(8),
		TitleSize:    vg.Points(10),
		MarkerRadius: vg.Points(1.5),
		Background:   color.Black,
		Foreground:   color.White,
		Marker:       color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		ArrowLength:  10,
	}
}

// Renderer draws charts with a fixed style.
type Renderer struct {
	style Style
}

// NewRenderer creates a Renderer.
func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Render writes c to w as PNG.
func (r *Renderer) Render(w io.Writer, c Chart) error {
	if len(c.Samples) == 0 {
		return fmt.Errorf("chart %q has no samples", c.Title())
	}

	p, err := r.plot(c)
	if err != nil {
		return err
	}

	canvas := vgimg.NewWith(vgimg.UseWH(r.style.Width, r.style.Height), vgimg.UseDPI(r.style.DPI))
	p.Draw(draw.New(canvas))

	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(w); err != nil {
		return fmt.Errorf("encoding chart %q: %w", c.Title(), err)
	}
	return nil
}

func (r *Renderer) plot(c Chart) (*plot.Plot, error) {
	s := r.style
	p := plot.New()
	p.BackgroundColor = s.Background

	p.Title.Text = c.Title()
	p.Title.TextStyle.Font.Size = s.TitleSize
	p.Title.TextStyle.Color = s.Foreground

	p.X.Label.Text = "Azimuth (deg)\n" + c.Caption()
	p.Y.Label.Text = "Elevation (deg)"
	for _, a := range []*plot.Axis{&p.X, &p.Y} {
		a.LineStyle.Color = s.Foreground
		a.Label.TextStyle.Color = s.Foreground
		a.Label.TextStyle.Font.Size = s.FontSize
		a.Tick.Label.Color = s.Foreground
		a.Tick.Label.Font.Size = s.FontSize
		a.Tick.LineStyle.Color = s.Foreground
	}
	p.X.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: 0, Label: "North"},
		{Value: 90, Label: "East"},
		{Value: 180, Label: "South"},
		{Value: 270, Label: "West"},
		{Value: 360, Label: "North"},
	})

	pts := make(plotter.XYs, len(c.Samples))
	for i, smp := range c.Samples {
		pts[i].X = smp.AzimuthDeg
		pts[i].Y = smp.ElevationDeg
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("chart %q samples: %w", c.Title(), err)
	}
	scatter.GlyphStyle.Color = s.Marker
	scatter.GlyphStyle.Radius = s.MarkerRadius
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}

	threshold, err := plotter.NewLine(plotter.XYs{{X: 0, Y: c.MinElevationDeg}, {X: 360, Y: c.MinElevationDeg}})
	if err != nil {
		return nil, err
	}
	threshold.LineStyle.Color = s.Foreground
	threshold.LineStyle.Width = vg.Points(1)
	threshold.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	shaft, head, err := r.arrow(c.Summary)
	if err != nil {
		return nil, err
	}

	p.Add(threshold, scatter, shaft, head)

	// Fixed ranges last: Add widens them to fit the data. A negative
	// threshold pulls the floor down so its line stays on the chart.
	p.X.Min, p.X.Max = 0, 360
	p.Y.Min, p.Y.Max = math.Min(0, c.MinElevationDeg), 90
	return p, nil
}

// arrow points along the direction of travel just above the peak.
func (r *Renderer) arrow(sum passes.Summary) (*plotter.Line, *plotter.Polygon, error) {
	length := r.style.ArrowLength * float64(sum.DirectionSign)
	if sum.DirectionSign == 0 {
		length = r.style.ArrowLength
	}
	headLen := math.Abs(length) * 0.4
	if length < 0 {
		headLen = -headLen
	}

	tail := sum.PeakAzimuthDeg
	tip := tail + length
	// Keep the arrow inside the azimuth axis.
	if tip > 360 {
		tail, tip = 360-length, 360
	} else if tip < 0 {
		tail, tip = -length, 0
	}
	y := math.Min(sum.PeakElevationDeg+3, 87)

	shaft, err := plotter.NewLine(plotter.XYs{{X: tail, Y: y}, {X: tip - headLen, Y: y}})
	if err != nil {
		return nil, nil, err
	}
	shaft.LineStyle.Color = r.style.Foreground
	shaft.LineStyle.Width = vg.Points(1.5)

	head, err := plotter.NewPolygon(plotter.XYs{
		{X: tip, Y: y},
		{X: tip - headLen, Y: y + 2},
		{X: tip - headLen, Y: y - 2},
	})
	if err != nil {
		return nil, nil, err
	}
	head.Color = r.style.Foreground
	head.LineStyle.Color = r.style.Foreground
	return shaft, head, nil
}
