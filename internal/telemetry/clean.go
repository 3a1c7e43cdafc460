package telemetry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RejectOutliers drops samples whose latitude or longitude lies further than
// k population standard deviations from the batch mean. Statistics are taken
// over the whole input before any sample is rejected. k <= 0 disables the
// filter.
func RejectOutliers(samples []PairSample, k float64) []PairSample {
	out := make([]PairSample, 0, len(samples))
	if k <= 0 || len(samples) == 0 {
		return append(out, samples...)
	}

	lats := make([]float64, len(samples))
	lons := make([]float64, len(samples))
	for i, s := range samples {
		lats[i], lons[i] = s.Latitude, s.Longitude
	}
	latMean, latStd := stat.PopMeanStdDev(lats, nil)
	lonMean, lonStd := stat.PopMeanStdDev(lons, nil)

	for _, s := range samples {
		if within(s.Latitude, latMean, latStd, k) && within(s.Longitude, lonMean, lonStd, k) {
			out = append(out, s)
		}
	}
	return out
}

// within reports whether x lies inside mean ± k·std. A zero spread keeps
// everything.
func within(x, mean, std, k float64) bool {
	if std == 0 || math.IsNaN(std) {
		return true
	}
	return math.Abs(x-mean) <= k*std
}

// ToClean converts millisecond timestamps to seconds.
func ToClean(samples []PairSample) []CleanSample {
	out := make([]CleanSample, len(samples))
	for i, s := range samples {
		out[i] = CleanSample{PairSample: s, TimeS: float64(s.TimestampMS) / 1000}
	}
	return out
}

// SortChronological stable-sorts samples by TimeS and drops any sample whose
// TimeS equals that of the sample kept before it, so the result is strictly
// increasing.
func SortChronological(samples []CleanSample) []CleanSample {
	sorted := make([]CleanSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimeS < sorted[j].TimeS })

	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s.TimeS == out[len(out)-1].TimeS {
			continue
		}
		out = append(out, s)
	}
	return out
}

// DropLeading removes the first n samples, the startup transient of a log.
func DropLeading(samples []CleanSample, n int) []CleanSample {
	if n < 0 {
		n = 0
	}
	if n >= len(samples) {
		return []CleanSample{}
	}
	out := make([]CleanSample, len(samples)-n)
	copy(out, samples[n:])
	return out
}
