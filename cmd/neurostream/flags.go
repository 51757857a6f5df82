package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	Mode            string
	Sim             bool
	SerialPort      string
	Duration        time.Duration
	Calibrate       time.Duration
	Verify          bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(args []string) (*CLIConfig, *flag.FlagSet, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("NEUROSTREAM_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: NEUROSTREAM_CONFIG)")

	fs.StringVar(&cfg.Mode, "mode", "",
		"Pipeline mode: attention, focus (overrides config)")

	fs.BoolVar(&cfg.Sim, "sim",
		getEnvBool("NEUROSTREAM_SIM", false),
		"Use the simulated signal source instead of serial (env: NEUROSTREAM_SIM)")

	fs.StringVar(&cfg.SerialPort, "port",
		getEnv("NEUROSTREAM_SERIAL_PORT", ""),
		"Serial port device path, \"auto\" or empty to auto-detect (overrides config, env: NEUROSTREAM_SERIAL_PORT)")

	fs.DurationVar(&cfg.Duration, "duration", 0,
		"Run for a fixed duration then stop, 0 to run until interrupted")

	fs.DurationVar(&cfg.Calibrate, "calibrate", 0,
		"Focus mode: collect a relaxed baseline for this long before decoding")

	fs.BoolVar(&cfg.Verify, "verify", false,
		"Focus mode: run the suppression verification protocol and exit")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("NEUROSTREAM_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: NEUROSTREAM_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("NEUROSTREAM_LOG_FORMAT", "text"),
		"Log format: json, text (env: NEUROSTREAM_LOG_FORMAT)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("NEUROSTREAM_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: NEUROSTREAM_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printDetailedHelp(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return cfg, fs, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.Mode != "" && cfg.Mode != "attention" && cfg.Mode != "focus" {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.Duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if cfg.Calibrate < 0 {
		return fmt.Errorf("calibrate duration cannot be negative")
	}

	if cfg.Verify && cfg.Mode == "attention" {
		return fmt.Errorf("verify protocol only applies to focus mode")
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - real-time EEG attention decoding

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Decode attention from a serial headset
  %s --port=/dev/ttyUSB0

  # Run focus mode against the simulator for two minutes
  %s --mode=focus --sim --calibrate=10s --duration=2m

  # Verify alpha suppression with a live subject
  %s --mode=focus --port=/dev/ttyUSB0 --verify

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], Version)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
