package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/kimjw0623/find-angel-sub000/internal/health"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
)

// Runner loops cycles of one engine until ctx is done. Cycle errors are
// logged and the loop continues.
type Runner struct {
	engine *Engine
	pause  time.Duration
	health *health.Component
	logger *slog.Logger

	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewRunner(engine *Engine, pause time.Duration, component *health.Component, logger *slog.Logger) *Runner {
	if component == nil {
		component = health.NewComponent("scan_" + engine.Horizon().String())
	}
	return &Runner{
		engine:  engine,
		pause:   pause,
		health:  component,
		logger:  logger.With("component", "scan_runner", "horizon", engine.Horizon().String()),
		sleepFn: sleepCtx,
	}
}

func (r *Runner) Engine() *Engine {
	return r.engine
}

func (r *Runner) Horizon() Horizon {
	return r.engine.Horizon()
}

func (r *Runner) Run(ctx context.Context, visit Visitor) error {
	horizon := r.engine.Horizon().String()
	r.logger.Info("scan runner started")
	for {
		start := time.Now()
		stats, err := r.engine.RunCycle(ctx, visit)
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			r.logger.Info("scan runner stopped")
			return nil
		}

		metrics.ScanCycleLatency.WithLabelValues(horizon).Observe(elapsed.Seconds())
		switch {
		case err != nil:
			metrics.ScanCyclesTotal.WithLabelValues(horizon, "error").Inc()
			if r.health.RecordFailure(err) {
				r.logger.Error("scan horizon unhealthy", "error", err)
			} else {
				r.logger.Warn("scan cycle failed", "error", err)
			}
		case stats.Failed > 0 && stats.Pages == 0:
			metrics.ScanCyclesTotal.WithLabelValues(horizon, "failed_pages").Inc()
			r.health.RecordFailure(nil)
			r.logger.Warn("scan cycle fetched no pages", "failed", stats.Failed)
		case stats.Failed > 0 || stats.Capped:
			metrics.ScanCyclesTotal.WithLabelValues(horizon, "incomplete").Inc()
			r.logger.Warn("scan cycle incomplete, cursor kept",
				"failed", stats.Failed, "capped", stats.Capped, "visited", stats.Visited)
		default:
			metrics.ScanCyclesTotal.WithLabelValues(horizon, "ok").Inc()
			if r.health.RecordSuccess(elapsed) {
				r.logger.Info("scan horizon recovered")
			}
			cur := r.engine.Cursor()
			r.logger.Debug("scan cycle complete",
				"start_page", stats.StartPage,
				"pages", stats.Pages,
				"visited", stats.Visited,
				"skipped", stats.Skipped,
				"crossed", stats.Crossed,
				"watermark", cur.Watermark,
				"duration", elapsed,
			)
		}

		if err := r.sleepFn(ctx, r.pause); err != nil {
			r.logger.Info("scan runner stopped")
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
