package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so no stray .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvDB, EnvListen, EnvUnits, EnvUploadMaxMB, EnvPipelineConfig, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	chdir(t)
	clearEnv(t)

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "trackspeed.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "mps", cfg.Units)
	assert.Equal(t, int64(300<<20), cfg.UploadMaxBytes())

	p, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, DefaultPipelineConfig(), p)
}

func TestServerConfig_PipelineDefaultsFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPipelineConfigPath),
		[]byte(`{"outlier_std_threshold": 4, "resolution_hz": 5}`), 0o644))

	p, err := ServerConfig{}.Pipeline()
	require.NoError(t, err)
	require.NotNil(t, p.OutlierStdThreshold)
	require.NotNil(t, p.ResolutionHz)
	assert.Equal(t, 4.0, *p.OutlierStdThreshold)
	assert.Equal(t, 5.0, *p.ResolutionHz)
}

func TestLoadServerConfig_Env(t *testing.T) {
	chdir(t)
	clearEnv(t)
	t.Setenv(EnvDB, "/tmp/x.db")
	t.Setenv(EnvUnits, "mph")
	t.Setenv(EnvUploadMaxMB, "12")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "mph", cfg.Units)
	assert.Equal(t, int64(12), cfg.UploadMaxMB)
}

func TestLoadServerConfig_DotEnv(t *testing.T) {
	dir := chdir(t)
	clearEnv(t)
	// godotenv never overrides variables already present, even empty ones.
	require.NoError(t, os.Unsetenv(EnvListen))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvListen+"=:9999\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv(EnvListen) })

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
}

func TestLoadServerConfig_Invalid(t *testing.T) {
	chdir(t)

	t.Run("units", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvUnits, "knots")
		_, err := LoadServerConfig()
		assert.Error(t, err)
	})
	t.Run("upload size", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvUploadMaxMB, "lots")
		_, err := LoadServerConfig()
		assert.Error(t, err)
	})
}
