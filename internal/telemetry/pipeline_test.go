package telemetry

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gpsEvents(ts int64, lat, lon float64) []RawEvent {
	return []RawEvent{
		{TimestampMS: ts, Sensor: SensorLatitude, Value: lat},
		{TimestampMS: ts, Sensor: SensorLongitude, Value: lon},
	}
}

func TestProcess_TwoPairs(t *testing.T) {
	t.Parallel()

	var events []RawEvent
	events = append(events, gpsEvents(0, 40.0, -105.0)...)
	events = append(events, gpsEvents(1000, 40.0001, -105.0)...)

	got, err := Process(events, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 0.0, got[0].SpeedMPS)
	assert.Equal(t, 1.0, got[1].TimeS)
	want := Distance(40.0, -105.0, 40.0001, -105.0)
	assert.InDelta(t, want, got[1].SpeedMPS, 1e-9)
	// 0.0001 degrees of latitude at 40N on WGS-84
	assert.InDelta(t, 11.103, got[1].SpeedMPS, 0.01)
}

func TestProcess_GrossOutlierDropped(t *testing.T) {
	t.Parallel()

	var events []RawEvent
	for i := 0; i < 2000; i++ {
		lat := 40.0001
		if i%2 == 1 {
			lat = 39.9999
		}
		events = append(events, gpsEvents(int64(i)*100, lat, -105.0)...)
	}
	// Roughly 44 standard deviations from the batch mean.
	events = append(events, gpsEvents(200_050, 41.0, -105.0)...)

	opts := DefaultOptions()
	opts.OutlierStdThreshold = 20
	got, err := Process(events, opts)
	require.NoError(t, err)

	assert.Len(t, got, 2000)
	for _, s := range got {
		assert.NotEqual(t, 41.0, s.Latitude)
	}
}

func TestProcess_OutlierFilterDisabled(t *testing.T) {
	t.Parallel()

	pairs := []PairSample{{0, 1, 1}, {1, 1, 1}, {2, 1, 1}, {3, 500, 1}}
	got := RejectOutliers(pairs, 0)
	assert.Empty(t, cmp.Diff(pairs, got))
}

func TestProcess_ModerateNoiseKept(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	pairs := make([]PairSample, 500)
	for i := range pairs {
		pairs[i] = PairSample{
			TimestampMS: int64(i) * 200,
			Latitude:    40 + rng.NormFloat64()*1e-4,
			Longitude:   -105 + rng.NormFloat64()*1e-4,
		}
	}
	// Gaussian noise never reaches 15 sigma at this sample size.
	assert.Len(t, RejectOutliers(pairs, DefaultOutlierStdThreshold), len(pairs))
}

func TestResample_CloseSamplesCollapse(t *testing.T) {
	t.Parallel()

	in := ToClean([]PairSample{
		{TimestampMS: 0, Latitude: 40.0, Longitude: -105.0},
		{TimestampMS: 50, Latitude: 40.00001, Longitude: -105.0},
	})
	got := Resample(in, 10)
	require.Len(t, got, 1)
	assert.Equal(t, int64(0), got[0].TimestampMS)
}

func TestSpeeds_GlitchCapRewritesToZero(t *testing.T) {
	t.Parallel()

	in := ToClean([]PairSample{
		{TimestampMS: 0, Latitude: 40.0, Longitude: -105.0},
		{TimestampMS: 1000, Latitude: 40.0018, Longitude: -105.0},
	})
	require.Greater(t, Distance(40.0, -105.0, 40.0018, -105.0), 190.0)

	got := Speeds(in, DefaultSpeedCapMPS)
	require.Len(t, got, 2, "capped sample must survive")
	assert.Equal(t, 0.0, got[1].SpeedMPS)
	assert.Equal(t, 40.0018, got[1].Latitude)
}

func TestSpeeds_NonPositiveTimeStep(t *testing.T) {
	t.Parallel()

	in := []CleanSample{
		{PairSample: PairSample{Latitude: 40, Longitude: -105}, TimeS: 1},
		{PairSample: PairSample{Latitude: 40.0001, Longitude: -105}, TimeS: 1},
		{PairSample: PairSample{Latitude: 40.0002, Longitude: -105}, TimeS: 0.5},
	}
	for _, s := range Speeds(in, 0) {
		assert.Equal(t, 0.0, s.SpeedMPS)
	}
}

func TestProcess_Errors(t *testing.T) {
	t.Parallel()

	cat := func(parts ...[]RawEvent) []RawEvent {
		var out []RawEvent
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}

	tests := []struct {
		name    string
		events  []RawEvent
		opts    Options
		kind    error
		stage   Stage
		message string
	}{
		{
			name:    "no gps rows",
			events:  []RawEvent{{TimestampMS: 0, Sensor: "Speed", Value: 3}},
			opts:    DefaultOptions(),
			kind:    ErrNoGPSData,
			stage:   StageExtract,
			message: "no GPS data found",
		},
		{
			name:    "gps rows never paired",
			events:  []RawEvent{{TimestampMS: 0, Sensor: SensorLatitude, Value: 40}, {TimestampMS: 5, Sensor: SensorLongitude, Value: -105}},
			opts:    DefaultOptions(),
			kind:    ErrInsufficientPairs,
			stage:   StageExtract,
			message: "need at least 2 valid coordinate pairs",
		},
		{
			name:    "latitude rows only",
			events:  []RawEvent{{TimestampMS: 0, Sensor: SensorLatitude, Value: 40}, {TimestampMS: 1000, Sensor: SensorLatitude, Value: 40.0001}},
			opts:    DefaultOptions(),
			kind:    ErrInsufficientPairs,
			stage:   StageExtract,
			message: "need at least 2 valid coordinate pairs",
		},
		{
			name: "single valid pair",
			events: cat(
				gpsEvents(0, 40, -105),
				[]RawEvent{{TimestampMS: 1000, Sensor: SensorLatitude, Value: 40.0001}},
			),
			opts:    DefaultOptions(),
			kind:    ErrInsufficientPairs,
			stage:   StageExtract,
			message: "need at least 2 valid coordinate pairs",
		},
		{
			name:    "outlier removal empties batch",
			events:  cat(gpsEvents(0, 0, 0), gpsEvents(1000, 0, 0), gpsEvents(2000, 1, 0)),
			opts:    Options{OutlierStdThreshold: 0.5},
			kind:    ErrInsufficientPairs,
			stage:   StageOutlier,
			message: "not enough points after outlier removal",
		},
		{
			name:    "leading drop leaves one",
			events:  cat(gpsEvents(0, 40, -105), gpsEvents(1000, 40, -105), gpsEvents(2000, 40, -105), gpsEvents(3000, 40, -105)),
			opts:    Options{LeadingDropCount: 3},
			kind:    ErrInsufficientPairs,
			stage:   StageClean,
			message: "not enough GPS points after processing",
		},
		{
			name:    "resampling leaves one",
			events:  cat(gpsEvents(0, 40, -105), gpsEvents(100, 40, -105), gpsEvents(200, 40, -105)),
			opts:    Options{ResolutionHz: 1},
			kind:    ErrInsufficientPairs,
			stage:   StageResample,
			message: "not enough GPS points after resampling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Process(tt.events, tt.opts)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Equal(t, tt.message, err.Error())

			var perr *PipelineError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.stage, perr.Stage)
		})
	}
}

func TestProcessContext_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var events []RawEvent
	events = append(events, gpsEvents(0, 40, -105)...)
	events = append(events, gpsEvents(1000, 40.0001, -105)...)

	_, err := ProcessContext(ctx, events, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	var events []RawEvent
	for _, ts := range []int64{3000, 1000, 2000, 1000, 0} {
		events = append(events, gpsEvents(ts, 40+float64(ts)*1e-8, -105)...)
	}
	before := append([]RawEvent(nil), events...)

	_, err := Process(events, LegacyOptions())
	require.Error(t, err) // four pairs minus three leading drops
	assert.Empty(t, cmp.Diff(before, events))
}

// randomLog builds a shuffled log with duplicate timestamps, repeated
// readings, unpaired coordinates and unrelated sensors.
func randomLog(rng *rand.Rand, n int) []RawEvent {
	var events []RawEvent
	lat, lon := 40.0, -105.0
	ts := int64(0)
	for i := 0; i < n; i++ {
		ts += int64(rng.Intn(150))
		lat += (rng.Float64() - 0.5) * 1e-4
		lon += (rng.Float64() - 0.5) * 1e-4
		switch rng.Intn(10) {
		case 0:
			events = append(events, RawEvent{TimestampMS: ts, Sensor: SensorLatitude, Value: lat})
		case 1:
			events = append(events, gpsEvents(ts, lat, lon)...)
			events = append(events, gpsEvents(ts, lat+1, lon+1)...)
		default:
			events = append(events, gpsEvents(ts, lat, lon)...)
		}
		events = append(events, RawEvent{TimestampMS: ts, Sensor: "EngineRPM", Value: rng.Float64() * 6000})
	}
	rng.Shuffle(len(events), func(i, j int) { events[i], events[j] = events[j], events[i] })
	return events
}

func TestProcess_Properties(t *testing.T) {
	t.Parallel()

	for _, hz := range []float64{0, 1, 2, 10} {
		rng := rand.New(rand.NewSource(int64(hz*100) + 1))
		events := randomLog(rng, 3000)

		paired := map[int64][2]bool{}
		for _, ev := range events {
			p := paired[ev.TimestampMS]
			switch ev.Sensor {
			case SensorLatitude:
				p[0] = true
			case SensorLongitude:
				p[1] = true
			}
			paired[ev.TimestampMS] = p
		}

		opts := DefaultOptions()
		opts.ResolutionHz = hz
		got, err := Process(events, opts)
		require.NoError(t, err)
		require.NotEmpty(t, got)

		assert.Equal(t, 0.0, got[0].SpeedMPS, "hz=%v first speed", hz)
		buckets := map[int64]bool{}
		for i, s := range got {
			p := paired[s.TimestampMS]
			assert.True(t, p[0] && p[1], "hz=%v unpaired timestamp %d in output", hz, s.TimestampMS)
			assert.GreaterOrEqual(t, s.SpeedMPS, 0.0)
			assert.LessOrEqual(t, s.SpeedMPS, DefaultSpeedCapMPS)
			assert.False(t, math.IsNaN(s.SpeedMPS))
			if i > 0 {
				assert.Less(t, got[i-1].TimeS, s.TimeS, "hz=%v not strictly increasing at %d", hz, i)
			}
			if hz > 0 {
				b := Bucket(s.TimeS, hz)
				assert.False(t, buckets[b], "hz=%v bucket %d repeated", hz, b)
				buckets[b] = true
			}
		}
	}
}

func TestLegacyOptions_OnePointPerSecond(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(99))
	got, err := Process(randomLog(rng, 2000), LegacyOptions())
	require.NoError(t, err)

	seconds := map[int64]bool{}
	for _, s := range got {
		sec := int64(math.Floor(s.TimeS))
		assert.False(t, seconds[sec], "second %d repeated", sec)
		seconds[sec] = true
	}
}
