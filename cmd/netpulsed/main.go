// netpulsed is the network measurement agent daemon.
//
// It periodically runs a speedtest, stores each result in a
// date-partitioned local row store, consolidates closed days into
// parquet archives, and uploads verified archives to S3.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/xtxerr/netpulse/internal/loader"
	"github.com/xtxerr/netpulse/internal/logging"
	"github.com/xtxerr/netpulse/internal/measure"
	"github.com/xtxerr/netpulse/internal/runner"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	interval := flag.Int("interval", 0, "seconds between cycles (overrides config)")
	resultDir := flag.String("results", "", "row store root (overrides config)")
	uploadDir := flag.String("uploads", "", "columnar store root (overrides config)")
	location := flag.String("location", "", "location identifier (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "log as JSON")
	flag.Parse()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = loader.DefaultConfig()
		} else {
			logging.Error("load config", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *interval > 0 {
		cfg.SleepSeconds = *interval
	}
	if *resultDir != "" {
		cfg.ResultDir = *resultDir
	}
	if *uploadDir != "" {
		cfg.UploadDir = *uploadDir
	}
	if *location != "" {
		cfg.LocationUUID = *location
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logJSON {
		cfg.Log.JSON = true
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		logging.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logging.Init(level, cfg.Log.JSON)

	if err := cfg.Normalize(); err != nil {
		logging.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logging.Info("netpulsed starting",
		"version", Version,
		"location", cfg.LocationUUID,
		"results", cfg.ResultDir,
		"uploads", cfg.UploadDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := measure.NewCLIRunner(cfg.Speedtest.Binary, cfg.Speedtest.Flags)
	r := runner.New(cfg, m)

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("loop error", "error", err)
		os.Exit(1)
	}

	logging.Warn("interrupt signal received, exiting gracefully")
}
