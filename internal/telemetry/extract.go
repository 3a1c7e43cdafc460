package telemetry

import "math"

// Extract pairs Latitude and Longitude events sharing a timestamp. The first
// value seen for each sensor at a timestamp wins; timestamps missing either
// coordinate are dropped. Output follows the order in which each timestamp
// first appeared. Non-finite values count as missing.
func Extract(events []RawEvent) []PairSample {
	type slot struct {
		lat, lon       float64
		hasLat, hasLon bool
	}
	index := make(map[int64]int)
	var order []int64
	var slots []slot

	for _, ev := range events {
		if ev.Sensor != SensorLatitude && ev.Sensor != SensorLongitude {
			continue
		}
		if math.IsNaN(ev.Value) || math.IsInf(ev.Value, 0) {
			continue
		}
		i, ok := index[ev.TimestampMS]
		if !ok {
			i = len(slots)
			index[ev.TimestampMS] = i
			order = append(order, ev.TimestampMS)
			slots = append(slots, slot{})
		}
		s := &slots[i]
		switch ev.Sensor {
		case SensorLatitude:
			if !s.hasLat {
				s.lat, s.hasLat = ev.Value, true
			}
		case SensorLongitude:
			if !s.hasLon {
				s.lon, s.hasLon = ev.Value, true
			}
		}
	}

	pairs := make([]PairSample, 0, len(slots))
	for i, s := range slots {
		if !s.hasLat || !s.hasLon {
			continue
		}
		pairs = append(pairs, PairSample{TimestampMS: order[i], Latitude: s.lat, Longitude: s.lon})
	}
	return pairs
}

// HasGPSRows reports whether any Latitude or Longitude event is present,
// whatever its value.
func HasGPSRows(events []RawEvent) bool {
	for _, ev := range events {
		if ev.Sensor == SensorLatitude || ev.Sensor == SensorLongitude {
			return true
		}
	}
	return false
}
