package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackspeed/internal/telemetry"
	"github.com/banshee-data/trackspeed/internal/units"
)

func ks(t, lat, lon, speed float64) telemetry.KinematicSample {
	return telemetry.KinematicSample{
		CleanSample: telemetry.CleanSample{
			PairSample: telemetry.PairSample{TimestampMS: int64(t * 1000), Latitude: lat, Longitude: lon},
			TimeS:      t,
		},
		SpeedMPS: speed,
	}
}

func drive() []telemetry.KinematicSample {
	var out []telemetry.KinematicSample
	for i := 0; i < 120; i++ {
		speed := float64(i % 30)
		if i == 0 {
			speed = 0
		}
		out = append(out, ks(float64(i)*0.5, 40+float64(i)*1e-4, -105+float64(i)*5e-5, speed))
	}
	return out
}

func TestSpeedScale(t *testing.T) {
	t.Parallel()

	s := NewSpeedScale(0, 20, 10)
	slow, fast := s.Hex(0), s.Hex(20)
	assert.NotEqual(t, slow, fast)
	assert.Regexp(t, `^#[0-9a-f]{6}$`, slow)
	assert.Equal(t, slow, s.Hex(-5), "below range clamps to the slow end")
	assert.Equal(t, fast, s.Hex(99), "above range clamps to the fast end")

	ramp := s.Ramp(5)
	require.Len(t, ramp, 5)
	assert.Equal(t, slow, ramp[0])
	assert.Equal(t, fast, ramp[4])

	flat := NewSpeedScale(3, 3, 3)
	assert.Regexp(t, `^#[0-9a-f]{6}$`, flat.Hex(3))
}

func TestBuildTrackMap(t *testing.T) {
	t.Parallel()

	samples := []telemetry.KinematicSample{
		ks(0, 40.0, -105.0, 0),
		ks(1, 40.1, -105.1, 10),
		ks(2, 40.2, -105.2, 0.05),
		ks(3, 40.3, -105.3, 30),
	}
	m := BuildTrackMap(samples)

	require.Len(t, m.Points, 2, "stationary samples are omitted")
	assert.Equal(t, 10.0, m.Legend.Min)
	assert.Equal(t, 30.0, m.Legend.Max)
	assert.Equal(t, 20.0, m.Legend.Avg)
	assert.InDelta(t, 40.2, m.CenterLatitude, 1e-12)
	assert.InDelta(t, -105.2, m.CenterLongitude, 1e-12)
	assert.Equal(t, 1.0, m.Start.TimeS)
	assert.Equal(t, 3.0, m.Finish.TimeS)
	assert.NotEqual(t, m.Points[0].Color, m.Points[1].Color)

	empty := BuildTrackMap([]telemetry.KinematicSample{ks(0, 40, -105, 0)})
	assert.Empty(t, empty.Points)
	assert.Nil(t, empty.Start)
}

func TestWritePNGCharts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	o := DefaultChartOptions()
	o.Minutes = true
	written, err := WritePNGCharts(dir, drive(), o)
	require.NoError(t, err)
	require.Len(t, written, 3)

	for _, name := range []string{LineChartFile, ScatterChartFile, HeatmapChartFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "%s is not a PNG", name)
	}
}

func TestSpeedGrid(t *testing.T) {
	t.Parallel()

	g := newSpeedGrid([]telemetry.KinematicSample{
		ks(0, 0, 0, 0),
		ks(5, 0, 0, 1.9),
		ks(12, 0, 0, 4.5),
	}, 1)
	c, r := g.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 3, r)
	assert.Equal(t, 2.0, g.Z(0, 0))
	assert.Equal(t, 1.0, g.Z(1, 2))
	assert.Equal(t, 15.0, g.X(1))
	assert.Equal(t, 5.0, g.Y(2))

	_, err := SpeedHeatmapPlot(nil, DefaultChartOptions())
	assert.Error(t, err)
}

func TestWriteSpeedChart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSpeedChart(&buf, drive(), "Lap 1", units.MPH))
	html := buf.String()
	assert.Contains(t, html, "Lap 1")
	assert.Contains(t, html, "Speed (mph)")
	assert.True(t, strings.Contains(html, "echarts"))
}

func TestWriteTrackMap(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteTrackMap(&buf, drive(), "Lap map", units.MPS))
	html := buf.String()
	assert.Contains(t, html, "Lap map")
	assert.Contains(t, html, "Finish")
	assert.Contains(t, html, "visualMap")
}

func TestWriteDashboard(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteDashboard(&buf, drive(), "Session", units.KMPH))
	assert.Contains(t, buf.String(), "Session")
	assert.Contains(t, buf.String(), "km/h")
}
