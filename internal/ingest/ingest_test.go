package ingest

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackspeed/internal/telemetry"
	"github.com/banshee-data/trackspeed/internal/testutil"
)

func TestReadEvents(t *testing.T) {
	t.Parallel()

	in := "\ufeffUnit, Timestamp,Sensor,Value,Extra\n" +
		"deg,1000,Latitude,40.0001,x\n" +
		"deg,1000,Longitude,-105,x\n" +
		"rpm,1000.7,EngineRPM,2200,x\n" +
		",not-a-time,Latitude,40,x\n" +
		"m,2000,Gear,N,x\n"

	events, stats, err := ReadEvents(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, telemetry.RawEvent{TimestampMS: 1000, Sensor: "Latitude", Value: 40.0001}, events[0])
	assert.Equal(t, int64(1000), events[2].TimestampMS, "fractional timestamps truncate")
	assert.Equal(t, "Gear", events[3].Sensor)
	assert.True(t, math.IsNaN(events[3].Value))

	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 1, stats.BadTimestamp)
	assert.Equal(t, 1, stats.BadValue)
}

func TestReadEvents_Malformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty":          "",
		"missing sensor": "Timestamp,Value\n1,2\n",
		"missing value":  "Timestamp,Sensor\n1,Latitude\n",
		"lowercase":      "timestamp,sensor,value\n1,Latitude,2\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadEvents(strings.NewReader(in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSource), "got %v", err)
		})
	}
}

func TestReadEvents_ShortRowSkipped(t *testing.T) {
	t.Parallel()

	in := "Timestamp,Sensor,Value\n1000,Latitude\n1000,Latitude,40\n"
	events, stats, err := ReadEvents(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, stats.BadTimestamp)
}

func TestReadFile_Pipeline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "drive.csv")
	require.NoError(t, os.WriteFile(path, testutil.DriveLog(50, 500, 20).Bytes(), 0o644))

	events, _, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, events, 150)

	samples, err := telemetry.Process(events, telemetry.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, samples, 50)
	for _, s := range samples[1:] {
		assert.InDelta(t, 20.0, s.SpeedMPS, 0.05)
	}
}

func TestReadFile_Missing(t *testing.T) {
	t.Parallel()

	_, _, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestWriteSpeedTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	rows := []telemetry.SpeedRow{{TimeS: 0, SpeedMPS: 0}, {TimeS: 0.5, SpeedMPS: 12.25}}
	require.NoError(t, WriteSpeedTable(&buf, rows))
	assert.Equal(t, "time,speed\n0,0\n0.5,12.25\n", buf.String())
}

func TestWriteSpeedTableFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SpeedTableFilename)
	require.NoError(t, WriteSpeedTableFile(path, []telemetry.SpeedRow{{TimeS: 1, SpeedMPS: 2}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "time,speed\n1,2\n", string(data))
}
