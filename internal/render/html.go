package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trackspeed/internal/telemetry"
	"github.com/banshee-data/trackspeed/internal/units"
)

// File names written for the interactive outputs.
const (
	TrackMapFile    = "interactive_gps_track.html"
	SpeedChartFile  = "speed_chart.html"
	DashboardFile   = "dashboard.html"
	rampColourCount = 9
)

// AssetsHost is where the rendered pages load echarts from. The server may
// point it at a local mirror.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// SpeedChart builds an interactive speed-vs-time line chart in the given units.
func SpeedChart(samples []telemetry.KinematicSample, title, unit string) *charts.Line {
	data := make([]opts.LineData, len(samples))
	for i, s := range samples {
		data[i] = opts.LineData{Value: []interface{}{s.TimeS, units.ConvertSpeed(s.SpeedMPS, unit)}}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: fmt.Sprintf("Speed (%s)", units.Label(unit)), NameLocation: "middle", NameGap: 35}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", Start: 0, End: 100, XAxisIndex: []int{0}},
			opts.DataZoom{Type: "slider", Start: 0, End: 100, XAxisIndex: []int{0}},
		),
	)
	line.AddSeries("speed", data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false), ShowSymbol: opts.Bool(false)}),
	)
	return line
}

// TrackMapChart plots the moving points of a track by longitude and latitude,
// coloured by speed, with start and finish markers.
func TrackMapChart(m TrackMap, title, unit string) *charts.Scatter {
	data := make([]opts.ScatterData, len(m.Points))
	for i, p := range m.Points {
		data[i] = opts.ScatterData{
			Value: []interface{}{p.Longitude, p.Latitude, units.ConvertSpeed(p.SpeedMPS, unit), p.TimeS},
		}
	}

	label := units.Label(unit)
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "720px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Subtitle: fmt.Sprintf("min %.1f  max %.1f  avg %.1f %s",
				units.ConvertSpeed(m.Legend.Min, unit), units.ConvertSpeed(m.Legend.Max, unit),
				units.ConvertSpeed(m.Legend.Avg, unit), label),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Scale: opts.Bool(true), Name: "Longitude", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Scale: opts.Bool(true), Name: "Latitude", NameLocation: "middle", NameGap: 45}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", XAxisIndex: []int{0}},
			opts.DataZoom{Type: "inside", YAxisIndex: []int{0}},
		),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(units.ConvertSpeed(m.Legend.Min, unit)),
			Max:        float32(units.ConvertSpeed(m.Legend.Max, unit)),
			Dimension:  "2",
			Text:       []string{"fast", "slow"},
			InRange:    &opts.VisualMapInRange{Color: m.Legend.Ramp(rampColourCount)},
		}),
	)
	scatter.AddSeries("track", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var ends []opts.ScatterData
	if m.Start != nil {
		ends = append(ends, opts.ScatterData{Name: "Start", Value: []interface{}{m.Start.Longitude, m.Start.Latitude}, Symbol: "pin", SymbolSize: 24})
	}
	if m.Finish != nil {
		ends = append(ends, opts.ScatterData{Name: "Finish", Value: []interface{}{m.Finish.Longitude, m.Finish.Latitude}, Symbol: "diamond", SymbolSize: 18})
	}
	if len(ends) > 0 {
		scatter.AddSeries("start/finish", ends)
	}
	return scatter
}

// WriteSpeedChart renders the speed chart page to w.
func WriteSpeedChart(w io.Writer, samples []telemetry.KinematicSample, title, unit string) error {
	return SpeedChart(samples, title, unit).Render(w)
}

// WriteTrackMap renders the track map page to w.
func WriteTrackMap(w io.Writer, samples []telemetry.KinematicSample, title, unit string) error {
	return TrackMapChart(BuildTrackMap(samples), title, unit).Render(w)
}

// WriteDashboard renders the map and the speed chart on one page.
func WriteDashboard(w io.Writer, samples []telemetry.KinematicSample, title, unit string) error {
	page := components.NewPage().SetPageTitle(title).SetAssetsHost(AssetsHost)
	page.AddCharts(
		TrackMapChart(BuildTrackMap(samples), title+" map", unit),
		SpeedChart(samples, title+" speed", unit),
	)
	return page.Render(w)
}
