// Package runner drives the measurement loop.
//
// Each iteration measures once and writes the record, then runs a
// guaranteed housekeeping phase (consolidation, then upload) whether
// or not the measurement succeeded, then sleeps. Every phase error is
// logged and swallowed; only cancellation ends the loop.
package runner

import (
	"context"
	"time"

	"github.com/xtxerr/netpulse/internal/archive"
	"github.com/xtxerr/netpulse/internal/loader"
	"github.com/xtxerr/netpulse/internal/logging"
	"github.com/xtxerr/netpulse/internal/measure"
	"github.com/xtxerr/netpulse/internal/results"
	"github.com/xtxerr/netpulse/internal/uploader"
)

var log = logging.Component("runner")

// Runner owns one sequential measurement loop. No parallel workers:
// measure, consolidate and upload run strictly one after another.
type Runner struct {
	cfg      *loader.Config
	measurer measure.Runner

	// Housekeeping phases, injectable in tests.
	convert func(context.Context)
	upload  func(context.Context) error
}

// New creates a Runner wired to the real consolidator and uploader.
func New(cfg *loader.Config, m measure.Runner) *Runner {
	up := uploader.New(cfg)
	return &Runner{
		cfg:      cfg,
		measurer: m,
		convert:  func(ctx context.Context) { archive.ConvertCompleteDays(ctx, cfg) },
		upload:   up.Run,
	}
}

// Run loops until ctx is cancelled. The cancellation error is returned
// so callers can tell a signal-driven exit from anything else.
func (r *Runner) Run(ctx context.Context) error {
	log.Info("measurement loop started", "interval", r.cfg.SleepInterval().String())

	for {
		r.iterate(ctx)

		if err := r.sleep(ctx); err != nil {
			log.Info("measurement loop stopped")
			return err
		}
	}
}

// iterate runs one measurement cycle. The deferred housekeeping phase
// runs even when the measurement or the write fails.
func (r *Runner) iterate(ctx context.Context) {
	defer r.housekeeping(ctx)

	res, err := r.measurer.Run(ctx)
	if err != nil {
		log.Error("measurement failed", "error", err)
		return
	}

	if _, err := results.Write(r.cfg.ResultDir, res); err != nil {
		log.Error("failed to write measurement", "error", err)
	}
}

// housekeeping consolidates closed partitions and runs the upload
// pipeline. Errors are logged, never fatal to the loop.
func (r *Runner) housekeeping(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	r.convert(ctx)

	if err := r.upload(ctx); err != nil {
		log.Error("upload pipeline failed", "error", err)
	}
}

// sleep pauses between iterations, waking immediately on cancellation.
func (r *Runner) sleep(ctx context.Context) error {
	log.Info("sleeping", "seconds", r.cfg.SleepSeconds)

	timer := time.NewTimer(r.cfg.SleepInterval())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
