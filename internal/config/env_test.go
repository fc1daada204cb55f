package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "uploads", cfg.Storage.IncomingDir)
	assert.Equal(t, "processed", cfg.Storage.OutgoingDir)
	assert.Equal(t, 20*time.Minute, cfg.Storage.Retention)
	assert.Equal(t, 800, cfg.Transform.DefaultMaxWidth)
	assert.Equal(t, 85, cfg.Transform.DefaultJPEGQuality)
	assert.Equal(t, 72, cfg.Transform.RenderDPI)
	assert.Equal(t, int64(50_000_000), cfg.Transform.MaxPixels)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("UPLOAD_DIR", "/tmp/in")
	t.Setenv("PROCESSED_DIR", "/tmp/out")
	t.Setenv("DEFAULT_MAX_WIDTH", "0")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("AXIOM_DATASET", "prod")
	t.Setenv("MAX_UPLOAD_MB", "not-a-number")
	t.Setenv("MAX_PIXELS", "1000000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/tmp/in", cfg.Storage.IncomingDir)
	assert.Equal(t, "/tmp/out", cfg.Storage.OutgoingDir)
	assert.Equal(t, 0, cfg.Transform.DefaultMaxWidth)
	assert.Equal(t, 30*time.Second, cfg.Storage.SweepInterval)
	assert.Equal(t, "prod_fileconv", cfg.Axiom.Dataset)
	assert.Equal(t, int64(64), cfg.Server.MaxUploadMB, "unparsable values keep the default")
	assert.Equal(t, int64(1_000_000), cfg.Transform.MaxPixels)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fileconv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
transform:
  default_jpeg_quality: 60
  render_dpi: 144
storage:
  incoming_dir: in
  outgoing_dir: out
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RENDER_DPI", "96")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 60, cfg.Transform.DefaultJPEGQuality)
	assert.Equal(t, 96, cfg.Transform.RenderDPI, "environment wins over the file")
	assert.Equal(t, "in", cfg.Storage.IncomingDir)
	assert.Equal(t, FileLifetime, cfg.Storage.Retention)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("UPLOAD_DIR", "same")
	t.Setenv("PROCESSED_DIR", "same")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty incoming", func(c *Config) { c.Storage.IncomingDir = "" }},
		{"jpeg quality too high", func(c *Config) { c.Transform.DefaultJPEGQuality = 100 }},
		{"jpeg quality zero", func(c *Config) { c.Transform.DefaultJPEGQuality = 0 }},
		{"zero dpi", func(c *Config) { c.Transform.RenderDPI = 0 }},
		{"zero upload", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"negative max pixels", func(c *Config) { c.Transform.MaxPixels = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseHelpers(t *testing.T) {
	assert.True(t, parseBool(" Yes "))
	assert.True(t, parseBool("1"))
	assert.False(t, parseBool("nope"))
	assert.Equal(t, 5, parseInt("x", 5))
	assert.Equal(t, 7, parseInt("7", 5))
	assert.Equal(t, time.Second, parseDuration("bad", time.Second))
	assert.Equal(t, 2*time.Minute, parseDuration("2m", time.Second))
}
