package telemetry

import (
	"math"

	"github.com/tidwall/geodesic"
)

// DefaultSpeedCapMPS is the glitch cap, roughly 300 mph. Faster derived
// speeds are rewritten to zero.
const DefaultSpeedCapMPS = 134.0

// Distance returns the WGS-84 geodesic distance in metres between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &s12, nil, nil)
	return s12
}

// Speeds derives the ground speed of each sample from its predecessor. The
// first sample, any non-positive time step and any speed above capMPS yield
// zero. capMPS <= 0 selects DefaultSpeedCapMPS.
func Speeds(samples []CleanSample, capMPS float64) []KinematicSample {
	if capMPS <= 0 {
		capMPS = DefaultSpeedCapMPS
	}
	out := make([]KinematicSample, len(samples))
	for i, s := range samples {
		out[i] = KinematicSample{CleanSample: s}
		if i == 0 {
			continue
		}
		prev := samples[i-1]
		dt := s.TimeS - prev.TimeS
		if dt <= 0 {
			continue
		}
		speed := Distance(prev.Latitude, prev.Longitude, s.Latitude, s.Longitude) / dt
		if math.IsNaN(speed) || math.IsInf(speed, 0) || speed > capMPS {
			continue
		}
		out[i].SpeedMPS = speed
	}
	return out
}
