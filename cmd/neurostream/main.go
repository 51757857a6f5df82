// Package main implements the entry point for the neurostream decoder.
// It wires an acquisition source, the decode loop and the configured
// result sinks, then runs until interrupted or a fixed duration ends.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/neurostream/acquisition"
	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/metric"
	"github.com/c360/neurostream/natsclient"
	"github.com/c360/neurostream/output/csvlog"
	"github.com/c360/neurostream/output/natspub"
	"github.com/c360/neurostream/output/wsstream"
	"github.com/c360/neurostream/realtime"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "neurostream"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp(fs)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("configuration is valid", "mode", cfg.Mode, "source", cfg.Acquisition.Source)
		return nil
	}

	slog.Info("starting neurostream",
		"mode", cfg.Mode,
		"source", cfg.Acquisition.Source,
		"sample_rate_hz", cfg.Signal.SampleRateHz,
		"window_seconds", cfg.Signal.WindowSeconds)

	ctx := context.Background()

	// Metrics endpoint is optional; the decoder takes a nil Metrics
	// when it is off.
	var metrics *metric.Metrics
	if cfg.Metrics.Enabled {
		registry := metric.NewMetricsRegistry()
		metricsServer := metric.NewServer(cfg.Metrics.Addr, "/metrics", registry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsServer.Stop(stopCtx)
		}()
		metrics = registry.Metrics
	}

	source := buildSource(cfg, logger)

	sinks, cleanup, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	decoder := realtime.NewDecoder(cfg, source, sinks, metrics, logger)
	if err := decoder.Initialize(); err != nil {
		return fmt.Errorf("initialize decoder: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	runCtx := signalCtx
	if cliCfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(signalCtx, cliCfg.Duration)
		defer cancel()
	}

	if cliCfg.Verify {
		return runVerification(runCtx, decoder, cliCfg)
	}

	if cfg.Mode == config.ModeFocus && cliCfg.Calibrate > 0 {
		slog.Info("calibrating baseline: relax with eyes closed", "duration", cliCfg.Calibrate)
		if err := decoder.Calibrate(runCtx, cliCfg.Calibrate); err != nil {
			return fmt.Errorf("baseline calibration: %w", err)
		}
	}

	// The decode loop owns source and sinks from here; it closes them
	// on exit.
	if err := decoder.Run(runCtx); err != nil {
		return fmt.Errorf("decode loop: %w", err)
	}

	slog.Info("neurostream shutdown complete")
	return nil
}

// loadConfiguration reads the config file (or defaults) and applies
// CLI overrides.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cliCfg.ConfigPath != "" {
		loaded, err := config.Load(cliCfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if cliCfg.Mode != "" {
		cfg.Mode = cliCfg.Mode
	}
	if cliCfg.Verify {
		cfg.Mode = config.ModeFocus
	}
	if cliCfg.Sim {
		cfg.Acquisition.Source = config.SourceSim
	}
	if cliCfg.SerialPort != "" {
		cfg.Acquisition.Source = config.SourceSerial
		cfg.Acquisition.SerialPort = cliCfg.SerialPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildSource(cfg *config.Config, logger *slog.Logger) acquisition.Source {
	if cfg.Acquisition.Source == config.SourceSim {
		return acquisition.NewSimSource(cfg.Acquisition, cfg.Signal, logger)
	}
	return acquisition.NewSerialSource(cfg.Acquisition, logger)
}

// buildSinks assembles the enabled result emitters. The returned
// cleanup tears down what the decode loop does not own (the NATS
// client).
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]realtime.Sink, func(), error) {
	var sinks []realtime.Sink
	cleanup := func() {}

	if cfg.Outputs.CSV.Enabled {
		w, err := csvlog.New(cfg.Outputs.CSV.Path, cfg.Mode, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open csv log: %w", err)
		}
		sinks = append(sinks, w)
	}

	if cfg.Outputs.NATS.Enabled {
		client := natsclient.NewClient(cfg.Outputs.NATS.URL,
			natsclient.WithName(appName),
			natsclient.WithReconnect(cfg.Outputs.NATS.MaxReconnects, cfg.Outputs.NATS.ReconnectWait),
			natsclient.WithLogger(logger),
		)
		if err := client.Connect(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("connect to NATS: %w", err)
		}
		cleanup = func() { _ = client.Close() }

		pub, err := natspub.New(client, cfg.Outputs.NATS, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("create NATS publisher: %w", err)
		}
		sinks = append(sinks, pub)
	}

	if cfg.Outputs.WebSocket.Enabled {
		srv := wsstream.New(cfg.Outputs.WebSocket, logger)
		if err := srv.Initialize(); err != nil {
			return nil, cleanup, fmt.Errorf("initialize websocket stream: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("start websocket stream: %w", err)
		}
		sinks = append(sinks, srv)
	}

	return sinks, cleanup, nil
}

// runVerification executes the two-phase alpha suppression check and
// reports whether the electrode placement discriminates.
func runVerification(ctx context.Context, decoder *realtime.Decoder, cliCfg *CLIConfig) error {
	calibrate := cliCfg.Calibrate
	if calibrate <= 0 {
		calibrate = 10 * time.Second
	}

	slog.Info("calibrating baseline: relax with eyes closed", "duration", calibrate)
	if err := decoder.Calibrate(ctx, calibrate); err != nil {
		return fmt.Errorf("baseline calibration: %w", err)
	}

	result, err := decoder.Verify(ctx, calibrate)
	if err != nil {
		return fmt.Errorf("verification: %w", err)
	}

	slog.Info("verification complete",
		"relaxed_mean_ratio", result.RelaxedMeanRatio,
		"focused_mean_ratio", result.FocusedMeanRatio,
		"difference", result.Difference,
		"percent_suppression", result.PercentSuppression,
		"valid", result.Valid)

	if !result.Valid {
		return fmt.Errorf("alpha suppression not detected: difference %.3f below threshold", result.Difference)
	}
	return nil
}
