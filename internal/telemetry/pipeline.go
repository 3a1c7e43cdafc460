package telemetry

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/banshee-data/trackspeed/internal/monitoring"
)

// Defaults for the resolution-aware pipeline.
const (
	DefaultOutlierStdThreshold = 15.0
	LegacyLeadingDropCount     = 3
	LegacyResolutionHz         = 1.0
)

// Options parameterises Process. Each step can be disabled independently.
type Options struct {
	// OutlierStdThreshold is k in mean ± k·stddev. <= 0 disables rejection.
	OutlierStdThreshold float64 `json:"outlier_std_threshold"`
	// ResolutionHz is the target points per second. <= 0 disables resampling.
	ResolutionHz float64 `json:"resolution_hz"`
	// LeadingDropCount samples are removed from the start of the sorted log.
	LeadingDropCount int `json:"leading_drop_count"`
	// SpeedCapMPS <= 0 selects DefaultSpeedCapMPS.
	SpeedCapMPS float64 `json:"speed_cap_mps"`
}

// DefaultOptions returns the glitch-filtering pipeline with resampling off.
func DefaultOptions() Options {
	return Options{
		OutlierStdThreshold: DefaultOutlierStdThreshold,
		SpeedCapMPS:         DefaultSpeedCapMPS,
	}
}

// LegacyOptions reproduces the fixed-resolution scripts: no outlier filter,
// the first three samples dropped, and one point per whole second.
func LegacyOptions() Options {
	return Options{
		ResolutionHz:     LegacyResolutionHz,
		LeadingDropCount: LegacyLeadingDropCount,
		SpeedCapMPS:      DefaultSpeedCapMPS,
	}
}

// Process runs the full pipeline over one batch of raw events.
func Process(events []RawEvent, opts Options) ([]KinematicSample, error) {
	return ProcessContext(context.Background(), events, opts)
}

// ProcessContext is Process with cancellation checked between stages.
func ProcessContext(ctx context.Context, events []RawEvent, opts Options) ([]KinematicSample, error) {
	pairs := Extract(events)
	logStage(StageExtract, len(events), len(pairs))
	if len(pairs) == 0 && !HasGPSRows(events) {
		return nil, noGPSData()
	}
	if len(pairs) < 2 {
		return nil, insufficient(StageExtract, len(pairs))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filtered := RejectOutliers(pairs, opts.OutlierStdThreshold)
	logStage(StageOutlier, len(pairs), len(filtered))
	if len(filtered) < 2 {
		return nil, insufficient(StageOutlier, len(filtered))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := DropLeading(SortChronological(ToClean(filtered)), opts.LeadingDropCount)
	logStage(StageClean, len(filtered), len(clean))
	if len(clean) < 2 {
		return nil, insufficient(StageClean, len(clean))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resampled := Resample(clean, opts.ResolutionHz)
	logStage(StageResample, len(clean), len(resampled))
	if len(resampled) < 2 {
		return nil, insufficient(StageResample, len(resampled))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Speeds(resampled, opts.SpeedCapMPS), nil
}

func logStage(stage Stage, in, out int) {
	monitoring.Stage(string(stage)).WithFields(log.Fields{"in": in, "out": out}).Debug("stage complete")
}
