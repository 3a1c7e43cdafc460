package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/banshee-data/trackspeed/internal/units"
)

// ServerConfig holds the settings of the track API server.
type ServerConfig struct {
	DBPath             string
	ListenAddr         string
	Units              string
	UploadMaxMB        int64
	PipelineConfigPath string
	LogLevel           string
}

// Environment variable names read by LoadServerConfig.
const (
	EnvDB             = "TRACKSPEED_DB"
	EnvListen         = "TRACKSPEED_LISTEN"
	EnvUnits          = "TRACKSPEED_UNITS"
	EnvUploadMaxMB    = "TRACKSPEED_UPLOAD_MAX_MB"
	EnvPipelineConfig = "TRACKSPEED_PIPELINE_CONFIG"
	EnvLogLevel       = "TRACKSPEED_LOG_LEVEL"
)

// DefaultUploadMaxMB matches the largest CAN logs seen from a full session.
const DefaultUploadMaxMB = 300

// LoadServerConfig reads a .env file if present, then the environment.
func LoadServerConfig() (ServerConfig, error) {
	_ = godotenv.Load()

	cfg := ServerConfig{
		DBPath:             getenv(EnvDB, "trackspeed.db"),
		ListenAddr:         getenv(EnvListen, ":8080"),
		Units:              getenv(EnvUnits, units.MPS),
		UploadMaxMB:        DefaultUploadMaxMB,
		PipelineConfigPath: os.Getenv(EnvPipelineConfig),
		LogLevel:           getenv(EnvLogLevel, "info"),
	}
	if v := os.Getenv(EnvUploadMaxMB); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("%s must be a positive integer, got %q", EnvUploadMaxMB, v)
		}
		cfg.UploadMaxMB = n
	}
	if !units.IsValid(cfg.Units) {
		return cfg, fmt.Errorf("%s must be one of: %s", EnvUnits, units.GetValidUnitsString())
	}
	return cfg, nil
}

// UploadMaxBytes returns the upload limit in bytes.
func (c ServerConfig) UploadMaxBytes() int64 {
	return c.UploadMaxMB << 20
}

// Pipeline loads the configured pipeline file. With none set it falls back to
// DefaultPipelineConfigPath in the working directory, then the built-in defaults.
func (c ServerConfig) Pipeline() (*PipelineConfig, error) {
	if c.PipelineConfigPath != "" {
		return LoadPipelineConfig(c.PipelineConfigPath)
	}
	if _, err := os.Stat(DefaultPipelineConfigPath); err == nil {
		return LoadPipelineConfig(DefaultPipelineConfigPath)
	}
	return DefaultPipelineConfig(), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
