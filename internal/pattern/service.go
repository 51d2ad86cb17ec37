package pattern

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/kimjw0623/find-angel-sub000/internal/health"
	"github.com/kimjw0623/find-angel-sub000/internal/signal"
)

// DefaultSchedule runs a tick every 15 minutes on the quarter hour.
const DefaultSchedule = "0 */15 * * * *"

type ServiceConfig struct {
	// Schedule is a six field cron expression (with seconds).
	Schedule string
	// GenerateOnStart runs a full generation before the first tick.
	GenerateOnStart bool
}

// Service runs the generator on a schedule. A tick regenerates from history
// when a collection finished since the previous tick and otherwise re-stamps
// the active generation. Either way it announces the result.
type Service struct {
	gen    *Generator
	pub    signal.Publisher
	sub    signal.Subscriber
	cfg    ServiceConfig
	health *health.Component
	logger *slog.Logger

	pending atomic.Bool
	nowFn   func() time.Time
}

func NewService(gen *Generator, pub signal.Publisher, sub signal.Subscriber, cfg ServiceConfig, component *health.Component, logger *slog.Logger) *Service {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if component == nil {
		component = health.NewComponent("generator")
	}
	return &Service{
		gen:    gen,
		pub:    pub,
		sub:    sub,
		cfg:    cfg,
		health: component,
		logger: logger.With("component", "pattern_service"),
		nowFn:  time.Now,
	}
}

// MarkCollected records that fresh listing history is available.
func (s *Service) MarkCollected() {
	s.pending.Store(true)
}

// Run blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	collected, err := s.sub.Subscribe(ctx, signal.CollectionCompleted)
	if err != nil {
		return fmt.Errorf("subscribe collection signal: %w", err)
	}

	if s.cfg.GenerateOnStart {
		s.MarkCollected()
		s.Tick(ctx)
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.logger.Info("pattern service started", "schedule", s.cfg.Schedule)

	for {
		select {
		case <-ctx.Done():
			<-c.Stop().Done()
			s.logger.Info("pattern service stopped")
			return nil
		case msg, ok := <-collected:
			if !ok {
				collected = nil
				continue
			}
			s.logger.Info("collection completed, queued for next tick", "at", msg.At)
			s.MarkCollected()
		}
	}
}

// Tick runs one scheduled update and publishes pattern_updated on success.
func (s *Service) Tick(ctx context.Context) {
	now := s.nowFn()
	start := time.Now()

	var (
		id   uuid.UUID
		err  error
		mode = "copy"
	)
	if s.pending.Swap(false) {
		mode = "full"
		id, err = s.gen.Generate(ctx, now)
	} else {
		id, err = s.gen.CopyLatest(ctx, now)
		if errors.Is(err, ErrNoActiveGeneration) {
			s.logger.Info("no generation to copy, generating from history")
			mode = "full"
			id, err = s.gen.Generate(ctx, now)
		}
	}

	if errors.Is(err, ErrGenerationInProgress) {
		s.logger.Warn("previous generation still running, tick skipped")
		if mode == "full" {
			s.MarkCollected()
		}
		return
	}
	if err != nil {
		if mode == "full" {
			s.MarkCollected()
		}
		if s.health.RecordFailure(err) {
			s.logger.Error("pattern generation unhealthy", "mode", mode, "error", err)
		} else {
			s.logger.Warn("pattern tick failed", "mode", mode, "error", err)
		}
		return
	}
	s.health.RecordSuccess(time.Since(start))

	msg := signal.Message{Type: signal.PatternUpdated, At: now, GenerationID: id, Source: "generator"}
	if err := s.pub.Publish(ctx, msg); err != nil {
		s.logger.Warn("publish pattern update failed", "generation_id", id, "error", err)
	}
}
