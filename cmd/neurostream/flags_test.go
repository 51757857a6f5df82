package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/neurostream/config"
)

func parse(t *testing.T, args ...string) *CLIConfig {
	t.Helper()
	cfg, _, err := parseFlags(args)
	require.NoError(t, err)
	return cfg
}

func TestParseFlags_Defaults(t *testing.T) {
	cfg := parse(t)
	assert.Equal(t, "", cfg.ConfigPath)
	assert.Equal(t, "", cfg.Mode)
	assert.False(t, cfg.Sim)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestParseFlags_Overrides(t *testing.T) {
	cfg := parse(t,
		"--mode=focus", "--sim", "--duration=2m",
		"--calibrate=15s", "--log-level=debug")
	assert.Equal(t, "focus", cfg.Mode)
	assert.True(t, cfg.Sim)
	assert.Equal(t, 2*time.Minute, cfg.Duration)
	assert.Equal(t, 15*time.Second, cfg.Calibrate)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr string
	}{
		{"valid defaults", func(*CLIConfig) {}, ""},
		{"bad mode", func(c *CLIConfig) { c.Mode = "zen" }, "invalid mode"},
		{"bad level", func(c *CLIConfig) { c.LogLevel = "loud" }, "invalid log level"},
		{"bad format", func(c *CLIConfig) { c.LogFormat = "xml" }, "invalid log format"},
		{"negative duration", func(c *CLIConfig) { c.Duration = -time.Second }, "duration cannot be negative"},
		{"verify in attention mode", func(c *CLIConfig) { c.Verify = true; c.Mode = "attention" }, "verify protocol"},
		{"missing config file", func(c *CLIConfig) { c.ConfigPath = "/nonexistent/cfg.json" }, "config file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := parse(t)
			tt.mutate(cfg)
			err := validateFlags(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateFlags_SkipsForVersionAndHelp(t *testing.T) {
	cfg := parse(t)
	cfg.LogLevel = "loud"
	cfg.ShowVersion = true
	assert.NoError(t, validateFlags(cfg))
}

func TestLoadConfiguration_CLIOverrides(t *testing.T) {
	cli := parse(t, "--mode=focus", "--sim")
	cfg, err := loadConfiguration(cli)
	require.NoError(t, err)
	assert.Equal(t, config.ModeFocus, cfg.Mode)
	assert.Equal(t, config.SourceSim, cfg.Acquisition.Source)
}

func TestLoadConfiguration_SerialPortForcesSerialSource(t *testing.T) {
	cli := parse(t, "--sim", "--port=/dev/ttyUSB0")
	cfg, err := loadConfiguration(cli)
	require.NoError(t, err)
	assert.Equal(t, config.SourceSerial, cfg.Acquisition.Source)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Acquisition.SerialPort)
}

func TestLoadConfiguration_VerifyForcesFocusMode(t *testing.T) {
	cli := parse(t, "--verify", "--sim")
	cfg, err := loadConfiguration(cli)
	require.NoError(t, err)
	assert.Equal(t, config.ModeFocus, cfg.Mode)
}

func TestLoadConfiguration_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode": "focus"}`), 0o644))

	cli := parse(t, "--config="+path)
	cfg, err := loadConfiguration(cli)
	require.NoError(t, err)
	assert.Equal(t, config.ModeFocus, cfg.Mode)
	// File is partial; everything else keeps defaults.
	assert.Equal(t, config.Default().Signal.SampleRateHz, cfg.Signal.SampleRateHz)
}
