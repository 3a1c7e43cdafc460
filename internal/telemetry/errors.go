package telemetry

import (
	"github.com/pkg/errors"
)

// Failure kinds reported by Process. Match them with errors.Is.
var (
	ErrNoGPSData         = errors.New("no GPS data found")
	ErrInsufficientPairs = errors.New("insufficient coordinate pairs")
)

// Stage names a pipeline step for error context and logging.
type Stage string

const (
	StageExtract  Stage = "extract"
	StageOutlier  Stage = "outlier"
	StageClean    Stage = "clean"
	StageResample Stage = "resample"
	StageSpeed    Stage = "speed"
)

// PipelineError reports a stage whose output fell below the minimum viable
// size. Error returns the message suitable for showing to an uploader.
type PipelineError struct {
	Kind      error
	Stage     Stage
	Remaining int
	msg       string
}

func (e *PipelineError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.Kind.Error()
}

// Unwrap exposes the failure kind to errors.Is.
func (e *PipelineError) Unwrap() error { return e.Kind }

func noGPSData() error {
	return &PipelineError{Kind: ErrNoGPSData, Stage: StageExtract}
}

var insufficientMessages = map[Stage]string{
	StageExtract:  "need at least 2 valid coordinate pairs",
	StageOutlier:  "not enough points after outlier removal",
	StageClean:    "not enough GPS points after processing",
	StageResample: "not enough GPS points after resampling",
}

func insufficient(stage Stage, remaining int) error {
	return &PipelineError{
		Kind:      ErrInsufficientPairs,
		Stage:     stage,
		Remaining: remaining,
		msg:       insufficientMessages[stage],
	}
}
