// Package chart renders the Democratic vs Republican application count
// comparison as a grouped bar chart PNG.
package chart

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ballotflow/mailballot/pkg/pipeline"
)

// Config holds chart rendering options.
type Config struct {
	Title  string
	XLabel string
	YLabel string

	// Width and Height of the output image.
	Width  vg.Length
	Height vg.Length
}

// DefaultConfig matches the original county comparison figure.
func DefaultConfig() Config {
	return Config{
		Title:  "Democratic vs Republican Application Counts by County",
		XLabel: "County",
		YLabel: "Number of Applications",
		Width:  12 * vg.Inch,
		Height: 8 * vg.Inch,
	}
}

var (
	demColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	repColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// RenderCountyParty writes a grouped bar chart of per-county DEM and
// REP application counts to path. The output format follows the file
// extension (use .png for the pipeline's default artifact).
func RenderCountyParty(counts []pipeline.CountyPartyCount, cfg Config, path string) error {
	if len(counts) == 0 {
		return fmt.Errorf("no county/party counts to plot")
	}

	demValues := make(plotter.Values, len(counts))
	repValues := make(plotter.Values, len(counts))
	labels := make([]string, len(counts))
	for i, c := range counts {
		demValues[i] = float64(c.Dem)
		repValues[i] = float64(c.Rep)
		labels[i] = c.County
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = cfg.XLabel
	p.Y.Label.Text = cfg.YLabel

	barWidth := vg.Points(8)

	demBars, err := plotter.NewBarChart(demValues, barWidth)
	if err != nil {
		return fmt.Errorf("dem bars: %w", err)
	}
	demBars.Color = demColor
	demBars.LineStyle.Width = 0
	demBars.Offset = -barWidth / 2

	repBars, err := plotter.NewBarChart(repValues, barWidth)
	if err != nil {
		return fmt.Errorf("rep bars: %w", err)
	}
	repBars.Color = repColor
	repBars.LineStyle.Width = 0
	repBars.Offset = barWidth / 2

	p.Add(demBars, repBars)
	p.Legend.Add("DEM", demBars)
	p.Legend.Add("REP", repBars)
	p.Legend.Top = true

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	if err := p.Save(cfg.Width, cfg.Height, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}
