package render

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trackspeed/internal/telemetry"
)

// MovingSpeedMPS is the threshold below which a sample is treated as stopped
// and left off the map.
const MovingSpeedMPS = 0.1

// MapPoint is one coloured position on the track map.
type MapPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	SpeedMPS  float64 `json:"speed"`
	TimeS     float64 `json:"time"`
	Color     string  `json:"color"`
}

// TrackMap is everything a map renderer needs: ordered points with colours,
// legend bounds, centre and the start and finish positions.
type TrackMap struct {
	Points          []MapPoint  `json:"points"`
	Legend          *SpeedScale `json:"legend"`
	CenterLatitude  float64     `json:"center_lat"`
	CenterLongitude float64     `json:"center_lng"`
	Start           *MapPoint   `json:"start,omitempty"`
	Finish          *MapPoint   `json:"finish,omitempty"`
}

// BuildTrackMap keeps moving samples only and colours them by speed relative
// to the moving range. The centre is the mean position of those samples.
func BuildTrackMap(samples []telemetry.KinematicSample) TrackMap {
	var moving []telemetry.KinematicSample
	for _, s := range samples {
		if s.SpeedMPS > MovingSpeedMPS {
			moving = append(moving, s)
		}
	}
	if len(moving) == 0 {
		return TrackMap{Points: []MapPoint{}, Legend: NewSpeedScale(0, 0, 0)}
	}

	speeds := make([]float64, len(moving))
	lats := make([]float64, len(moving))
	lons := make([]float64, len(moving))
	lo, hi := moving[0].SpeedMPS, moving[0].SpeedMPS
	for i, s := range moving {
		speeds[i], lats[i], lons[i] = s.SpeedMPS, s.Latitude, s.Longitude
		lo = math.Min(lo, s.SpeedMPS)
		hi = math.Max(hi, s.SpeedMPS)
	}
	scale := NewSpeedScale(lo, hi, stat.Mean(speeds, nil))

	m := TrackMap{
		Points:          make([]MapPoint, len(moving)),
		Legend:          scale,
		CenterLatitude:  stat.Mean(lats, nil),
		CenterLongitude: stat.Mean(lons, nil),
	}
	for i, s := range moving {
		m.Points[i] = MapPoint{
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			SpeedMPS:  s.SpeedMPS,
			TimeS:     s.TimeS,
			Color:     scale.Hex(s.SpeedMPS),
		}
	}
	start, finish := m.Points[0], m.Points[len(m.Points)-1]
	m.Start, m.Finish = &start, &finish
	return m
}
