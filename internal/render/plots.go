package render

import (
	"image/color"
	"math"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/trackspeed/internal/telemetry"
)

// File names written by WritePNGCharts.
const (
	LineChartFile    = "speed_vs_time_line.png"
	ScatterChartFile = "speed_vs_time_scatter.png"
	HeatmapChartFile = "speed_vs_time_heatmap.png"
)

// Heatmap bin sizes.
const (
	HeatmapTimeBinS   = 10.0
	HeatmapSpeedBinMS = 2.0
)

// ChartOptions controls the static charts.
type ChartOptions struct {
	// Minutes plots time in minutes instead of seconds.
	Minutes bool
	Width   vg.Length
	Height  vg.Length
}

// DefaultChartOptions returns 12x6 inch charts with time in seconds.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 12 * vg.Inch, Height: 6 * vg.Inch}
}

func (o ChartOptions) timeScale() (float64, string) {
	if o.Minutes {
		return 60, "Time (minutes)"
	}
	return 1, "Time (seconds)"
}

func (o ChartOptions) speedXYs(samples []telemetry.KinematicSample) plotter.XYs {
	div, _ := o.timeScale()
	xys := make(plotter.XYs, len(samples))
	for i, s := range samples {
		xys[i].X = s.TimeS / div
		xys[i].Y = s.SpeedMPS
	}
	return xys
}

func (o ChartOptions) newPlot(title string) *plot.Plot {
	_, label := o.timeScale()
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = label
	p.Y.Label.Text = "Speed (m/s)"
	p.Add(plotter.NewGrid())
	return p
}

// SpeedLinePlot draws speed against time as a single line.
func SpeedLinePlot(samples []telemetry.KinematicSample, o ChartOptions) (*plot.Plot, error) {
	p := o.newPlot("Speed vs Time")
	line, err := plotter.NewLine(o.speedXYs(samples))
	if err != nil {
		return nil, errors.Wrap(err, "speed line")
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)
	p.Legend.Add("speed", line)
	p.Legend.Top = true
	return p, nil
}

// SpeedScatterPlot draws each sample as a point coloured by its position in time.
func SpeedScatterPlot(samples []telemetry.KinematicSample, o ChartOptions) (*plot.Plot, error) {
	p := o.newPlot("Speed vs Time (coloured by time)")
	sc, err := plotter.NewScatter(o.speedXYs(samples))
	if err != nil {
		return nil, errors.Wrap(err, "speed scatter")
	}

	cmap := moreland.SmoothPurpleOrange()
	last := 1.0
	if n := len(samples); n > 0 && samples[n-1].TimeS > samples[0].TimeS {
		cmap.SetMin(samples[0].TimeS)
		last = samples[n-1].TimeS
	} else {
		cmap.SetMin(0)
	}
	cmap.SetMax(last)
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c, err := cmap.At(math.Min(math.Max(samples[i].TimeS, cmap.Min()), cmap.Max()))
		if err != nil {
			c = color.Gray{Y: 128}
		}
		return draw.GlyphStyle{Color: c, Radius: vg.Points(1.5), Shape: draw.CircleGlyph{}}
	}
	p.Add(sc)
	return p, nil
}

// speedGrid bins samples into HeatmapTimeBinS x HeatmapSpeedBinMS cells.
type speedGrid struct {
	counts     [][]float64 // [col][row]
	timeDiv    float64
	cols, rows int
}

func newSpeedGrid(samples []telemetry.KinematicSample, timeDiv float64) *speedGrid {
	var maxT, maxV float64
	for _, s := range samples {
		maxT = math.Max(maxT, s.TimeS)
		maxV = math.Max(maxV, s.SpeedMPS)
	}
	g := &speedGrid{
		timeDiv: timeDiv,
		cols:    int(maxT/HeatmapTimeBinS) + 1,
		rows:    int(maxV/HeatmapSpeedBinMS) + 1,
	}
	g.counts = make([][]float64, g.cols)
	for c := range g.counts {
		g.counts[c] = make([]float64, g.rows)
	}
	for _, s := range samples {
		c := int(math.Max(s.TimeS, 0) / HeatmapTimeBinS)
		r := int(s.SpeedMPS / HeatmapSpeedBinMS)
		g.counts[c][r]++
	}
	return g
}

func (g *speedGrid) Dims() (c, r int) { return g.cols, g.rows }

func (g *speedGrid) Z(c, r int) float64 { return g.counts[c][r] }

// X and Y return bin centres in axis units.
func (g *speedGrid) X(c int) float64 { return (float64(c) + 0.5) * HeatmapTimeBinS / g.timeDiv }

func (g *speedGrid) Y(r int) float64 { return (float64(r) + 0.5) * HeatmapSpeedBinMS }

// SpeedHeatmapPlot draws a 2D histogram of speed against time.
func SpeedHeatmapPlot(samples []telemetry.KinematicSample, o ChartOptions) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, errors.New("speed heatmap: no samples")
	}
	div, _ := o.timeScale()
	p := o.newPlot("Speed vs Time Density")
	hm := plotter.NewHeatMap(newSpeedGrid(samples, div), palette.Heat(12, 1))
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)
	return p, nil
}

// WritePNGCharts saves the line, scatter and heatmap charts into dir and
// returns the written paths.
func WritePNGCharts(dir string, samples []telemetry.KinematicSample, o ChartOptions) ([]string, error) {
	if o.Width == 0 || o.Height == 0 {
		d := DefaultChartOptions()
		o.Width, o.Height = d.Width, d.Height
	}
	charts := []struct {
		file  string
		build func([]telemetry.KinematicSample, ChartOptions) (*plot.Plot, error)
	}{
		{LineChartFile, SpeedLinePlot},
		{ScatterChartFile, SpeedScatterPlot},
		{HeatmapChartFile, SpeedHeatmapPlot},
	}

	var written []string
	for _, c := range charts {
		p, err := c.build(samples, o)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, c.file)
		if err := p.Save(o.Width, o.Height, path); err != nil {
			return written, errors.Wrapf(err, "save %s", path)
		}
		written = append(written, path)
	}
	return written, nil
}
