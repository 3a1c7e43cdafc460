package telemetry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary holds the aggregate statistics stored alongside a track.
type Summary struct {
	Count           int     `json:"count"`
	DurationS       float64 `json:"duration_s"`
	MaxSpeed        float64 `json:"max_speed"`
	AvgSpeed        float64 `json:"avg_speed"`
	MinLatitude     float64 `json:"min_latitude"`
	MaxLatitude     float64 `json:"max_latitude"`
	MinLongitude    float64 `json:"min_longitude"`
	MaxLongitude    float64 `json:"max_longitude"`
	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
}

// Summarize computes aggregate statistics. Duration is the last sample's
// TimeS. The centre is the midpoint of the bounding box.
func Summarize(samples []KinematicSample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	sum := Summary{
		Count:        len(samples),
		DurationS:    samples[len(samples)-1].TimeS,
		MinLatitude:  math.Inf(1),
		MaxLatitude:  math.Inf(-1),
		MinLongitude: math.Inf(1),
		MaxLongitude: math.Inf(-1),
	}
	speeds := make([]float64, len(samples))
	for i, s := range samples {
		speeds[i] = s.SpeedMPS
		sum.MaxSpeed = math.Max(sum.MaxSpeed, s.SpeedMPS)
		sum.MinLatitude = math.Min(sum.MinLatitude, s.Latitude)
		sum.MaxLatitude = math.Max(sum.MaxLatitude, s.Latitude)
		sum.MinLongitude = math.Min(sum.MinLongitude, s.Longitude)
		sum.MaxLongitude = math.Max(sum.MaxLongitude, s.Longitude)
	}
	sum.AvgSpeed = stat.Mean(speeds, nil)
	sum.CenterLatitude = (sum.MinLatitude + sum.MaxLatitude) / 2
	sum.CenterLongitude = (sum.MinLongitude + sum.MaxLongitude) / 2
	return sum
}
