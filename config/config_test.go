package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxHeaderLines)
	assert.Equal(t, "utf-8", cfg.Encoding)
	assert.Equal(t, 200*1024, cfg.SpoolMaxMemory)
	assert.Equal(t, SinkStdout, cfg.Sink.Type)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_header_lines: 50
encoding: iso-8859-1
banner:
  text: "scanned by example.com"
sink:
  type: ses
  ses:
    region: eu-central-1
    sender: postmaster@example.com
log:
  level: debug
`), 0o600))
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxHeaderLines)
	assert.Equal(t, "iso-8859-1", cfg.Encoding)
	assert.Equal(t, "scanned by example.com", cfg.Banner.Text)
	assert.Equal(t, SinkSES, cfg.Sink.Type)
	assert.Equal(t, "eu-central-1", cfg.Sink.SES.Region)
	assert.Equal(t, "postmaster@example.com", cfg.Sink.SES.Sender)
	assert.Equal(t, "debug", cfg.Log.Level)
	// defaults survive for keys the file does not set
	assert.Equal(t, 200*1024, cfg.SpoolMaxMemory)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SMTPDATA_MAX_HEADER_LINES", "7")
	t.Setenv("SMTPDATA_SINK_TYPE", "discard")
	t.Setenv("SMTPDATA_LOG_LEVEL", "warn")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxHeaderLines)
	assert.Equal(t, SinkDiscard, cfg.Sink.Type)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative cap", func(c *Config) { c.MaxHeaderLines = -1 }},
		{"unknown encoding", func(c *Config) { c.Encoding = "klingon" }},
		{"unknown sink", func(c *Config) { c.Sink.Type = "carrier-pigeon" }},
		{"ses without region", func(c *Config) { c.Sink.Type = SinkSES }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
