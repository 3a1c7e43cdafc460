// Package telemetry derives ground speed from CAN-bus GPS readings.
//
// The pipeline is linear: Extract pairs Latitude/Longitude readings that
// share a timestamp, RejectOutliers removes gross GPS glitches, the samples
// are sorted and deduplicated chronologically, Resample caps point density,
// and Speeds computes per-sample geodesic speed. Every stage returns a new
// slice and leaves its input untouched.
package telemetry

// Sensor names carrying GPS coordinates in the CAN log.
const (
	SensorLatitude  = "Latitude"
	SensorLongitude = "Longitude"
)

// RawEvent is one timestamped sensor reading as read from the source log.
type RawEvent struct {
	TimestampMS int64   `json:"timestamp_ms"`
	Sensor      string  `json:"sensor"`
	Value       float64 `json:"value"`
}

// PairSample is a latitude and longitude reading sharing one timestamp.
type PairSample struct {
	TimestampMS int64   `json:"timestamp_ms"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// CleanSample is a PairSample with its timestamp expressed in seconds.
// Resampled sequences use the same type.
type CleanSample struct {
	PairSample
	TimeS float64 `json:"time_s"`
}

// KinematicSample is a CleanSample with the derived ground speed.
type KinematicSample struct {
	CleanSample
	SpeedMPS float64 `json:"speed_mps"`
}

// SpeedRow is one line of the two-column time/speed table.
type SpeedRow struct {
	TimeS    float64
	SpeedMPS float64
}

// SpeedTable projects samples onto (time_s, speed_mps) pairs.
func SpeedTable(samples []KinematicSample) []SpeedRow {
	rows := make([]SpeedRow, len(samples))
	for i, s := range samples {
		rows[i] = SpeedRow{TimeS: s.TimeS, SpeedMPS: s.SpeedMPS}
	}
	return rows
}
