package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/trackspeed/internal/telemetry"
)

// DefaultPipelineConfigPath is the path to the canonical pipeline defaults file.
const DefaultPipelineConfigPath = "config/pipeline.defaults.json"

// MaxResolutionHz bounds resolution_hz; CAN GPS never reports faster.
const MaxResolutionHz = 1000.0

// PipelineConfig holds the tuning knobs of the GPS-to-speed pipeline. The
// same JSON shape is served by /api/config.
type PipelineConfig struct {
	OutlierStdThreshold *float64 `json:"outlier_std_threshold,omitempty"`
	ResolutionHz        *float64 `json:"resolution_hz,omitempty"`
	LeadingDropCount    *int     `json:"leading_drop_count,omitempty"`
	SpeedCapMPS         *float64 `json:"speed_cap_mps,omitempty"`

	// LegacyMode starts from the fixed one-point-per-second preset. Explicit
	// fields above still override it.
	LegacyMode *bool `json:"legacy_mode,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

// DefaultPipelineConfig returns a config with every field set to the
// resolution-aware defaults.
func DefaultPipelineConfig() *PipelineConfig {
	d := telemetry.DefaultOptions()
	return &PipelineConfig{
		OutlierStdThreshold: ptrFloat64(d.OutlierStdThreshold),
		ResolutionHz:        ptrFloat64(d.ResolutionHz),
		LeadingDropCount:    ptrInt(d.LeadingDropCount),
		SpeedCapMPS:         ptrFloat64(d.SpeedCapMPS),
		LegacyMode:          ptrBool(false),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Omitted fields fall
// back to defaults through Options.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PipelineConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultPipelineConfig loads DefaultPipelineConfigPath from the
// current directory or a parent. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultPipelineConfig() *PipelineConfig {
	candidates := []string{
		DefaultPipelineConfigPath,
		"../" + DefaultPipelineConfigPath,
		"../../" + DefaultPipelineConfigPath,
		"../../../" + DefaultPipelineConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultPipelineConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *PipelineConfig) Validate() error {
	if c.OutlierStdThreshold != nil && (*c.OutlierStdThreshold < 0 || !finite(*c.OutlierStdThreshold)) {
		return fmt.Errorf("outlier_std_threshold must be >= 0 and finite, got %v", *c.OutlierStdThreshold)
	}
	if c.ResolutionHz != nil && (*c.ResolutionHz < 0 || *c.ResolutionHz > MaxResolutionHz || math.IsNaN(*c.ResolutionHz)) {
		return fmt.Errorf("resolution_hz must be between 0 and %v, got %v", MaxResolutionHz, *c.ResolutionHz)
	}
	if c.LeadingDropCount != nil && *c.LeadingDropCount < 0 {
		return fmt.Errorf("leading_drop_count must be >= 0, got %d", *c.LeadingDropCount)
	}
	if c.SpeedCapMPS != nil && (*c.SpeedCapMPS < 0 || !finite(*c.SpeedCapMPS)) {
		return fmt.Errorf("speed_cap_mps must be >= 0 and finite, got %v", *c.SpeedCapMPS)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// GetLegacyMode returns the legacy_mode value or the default.
func (c *PipelineConfig) GetLegacyMode() bool {
	if c.LegacyMode == nil {
		return false
	}
	return *c.LegacyMode
}

// Options converts the config into pipeline options.
func (c *PipelineConfig) Options() telemetry.Options {
	opts := telemetry.DefaultOptions()
	if c.GetLegacyMode() {
		opts = telemetry.LegacyOptions()
	}
	if c.OutlierStdThreshold != nil {
		opts.OutlierStdThreshold = *c.OutlierStdThreshold
	}
	if c.ResolutionHz != nil {
		opts.ResolutionHz = *c.ResolutionHz
	}
	if c.LeadingDropCount != nil {
		opts.LeadingDropCount = *c.LeadingDropCount
	}
	if c.SpeedCapMPS != nil {
		opts.SpeedCapMPS = *c.SpeedCapMPS
	}
	return opts
}
