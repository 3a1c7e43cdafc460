package telemetry

import (
	"math"
	"sort"
)

// Bucket returns the resampling bucket of a time at the given resolution.
func Bucket(timeS, hz float64) int64 {
	return int64(math.Floor(timeS * hz))
}

// Resample keeps the first sample in each bucket of width 1/hz seconds. The
// input is expected in chronological order; the output is re-sorted by TimeS.
// hz <= 0 returns a copy of the input.
func Resample(samples []CleanSample, hz float64) []CleanSample {
	if hz <= 0 {
		out := make([]CleanSample, len(samples))
		copy(out, samples)
		return out
	}

	seen := make(map[int64]struct{}, len(samples))
	out := make([]CleanSample, 0, len(samples))
	for _, s := range samples {
		b := Bucket(s.TimeS, hz)
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimeS < out[j].TimeS })
	return out
}
