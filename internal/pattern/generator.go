package pattern

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
	"github.com/kimjw0623/find-angel-sub000/internal/store"
	"github.com/kimjw0623/find-angel-sub000/internal/tracing"
)

var (
	ErrNoActiveGeneration   = errors.New("no active pattern generation")
	ErrGenerationInProgress = errors.New("pattern generation already in progress")
)

type GeneratorConfig struct {
	// SoldWindow is how far back sold listings still count as prices.
	SoldWindow time.Duration
	// OutcomeWindow is how far back sold and expired listings feed success rates.
	OutcomeWindow time.Duration
	Build         Options
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.SoldWindow <= 0 {
		c.SoldWindow = 7 * 24 * time.Hour
	}
	if c.OutcomeWindow <= 0 {
		c.OutcomeWindow = 30 * 24 * time.Hour
	}
	c.Build = c.Build.withDefaults()
	return c
}

// Generator turns listing history into pattern generations. One generation
// runs at a time; a concurrent call fails fast with ErrGenerationInProgress.
type Generator struct {
	listings store.ListingRepository
	patterns store.PatternRepository
	cfg      GeneratorConfig
	logger   *slog.Logger

	mu    sync.Mutex
	newID func() uuid.UUID
	nowFn func() time.Time
}

func NewGenerator(listings store.ListingRepository, patterns store.PatternRepository, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	return &Generator{
		listings: listings,
		patterns: patterns,
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "pattern_generator"),
		newID:    uuid.New,
		nowFn:    time.Now,
	}
}

// Generate computes and stores a fresh generation as of asOf and returns its
// id. The generation becomes active unless a newer one already exists. Any
// error leaves the previously active generation in place.
func (g *Generator) Generate(ctx context.Context, asOf time.Time) (uuid.UUID, error) {
	if !g.mu.TryLock() {
		return uuid.Nil, ErrGenerationInProgress
	}
	defer g.mu.Unlock()

	ctx, span := tracing.Tracer("pattern").Start(ctx, "pattern.generate",
		otelTrace.WithAttributes(attribute.String("as_of", asOf.UTC().Format(time.RFC3339))),
	)
	defer span.End()

	start := g.nowFn()
	id, err := g.generate(ctx, asOf)
	metrics.GeneratorLatency.Observe(g.nowFn().Sub(start).Seconds())
	if err != nil {
		metrics.GeneratorRunsTotal.WithLabelValues("full", "error").Inc()
		tracing.Fail(span, err)
		return uuid.Nil, err
	}
	metrics.GeneratorRunsTotal.WithLabelValues("full", "ok").Inc()
	return id, nil
}

func (g *Generator) generate(ctx context.Context, asOf time.Time) (uuid.UUID, error) {
	window, err := g.listings.Window(ctx, asOf, g.cfg.SoldWindow, g.cfg.OutcomeWindow)
	if err != nil {
		return uuid.Nil, fmt.Errorf("read listing window: %w", err)
	}

	gen := model.Generation{ID: g.newID(), AsOf: asOf, CreatedAt: g.nowFn()}
	set := Build(gen, window, g.cfg.Build)

	activated, err := g.patterns.WriteGeneration(ctx, set)
	if err != nil {
		return uuid.Nil, fmt.Errorf("write generation %s: %w", gen.ID, err)
	}
	metrics.GeneratorRowsWritten.WithLabelValues("accessory").Add(float64(len(set.Accessories)))
	metrics.GeneratorRowsWritten.WithLabelValues("bracelet").Add(float64(len(set.Bracelets)))

	g.logger.Info("pattern generation written",
		"generation_id", gen.ID,
		"as_of", asOf,
		"priced_listings", len(window.Priced),
		"outcome_listings", len(window.Outcomes),
		"accessory_patterns", len(set.Accessories),
		"bracelet_patterns", len(set.Bracelets),
		"activated", activated,
	)
	return gen.ID, nil
}

// CopyLatest re-stamps the active generation's rows as a new generation
// as of asOf. It is used when no collection happened since the last run.
func (g *Generator) CopyLatest(ctx context.Context, asOf time.Time) (uuid.UUID, error) {
	if !g.mu.TryLock() {
		return uuid.Nil, ErrGenerationInProgress
	}
	defer g.mu.Unlock()

	ctx, span := tracing.Tracer("pattern").Start(ctx, "pattern.copy_latest")
	defer span.End()

	active, err := g.patterns.ActiveGeneration(ctx)
	if err != nil {
		metrics.GeneratorRunsTotal.WithLabelValues("copy", "error").Inc()
		tracing.Fail(span, err)
		return uuid.Nil, fmt.Errorf("find active generation: %w", err)
	}
	if active == nil {
		metrics.GeneratorRunsTotal.WithLabelValues("copy", "error").Inc()
		return uuid.Nil, ErrNoActiveGeneration
	}

	gen := model.Generation{ID: g.newID(), AsOf: asOf, CreatedAt: g.nowFn()}
	activated, err := g.patterns.CopyGeneration(ctx, active.ID, gen)
	if err != nil {
		metrics.GeneratorRunsTotal.WithLabelValues("copy", "error").Inc()
		tracing.Fail(span, err)
		return uuid.Nil, fmt.Errorf("copy generation %s: %w", active.ID, err)
	}
	metrics.GeneratorRunsTotal.WithLabelValues("copy", "ok").Inc()
	g.logger.Info("pattern generation copied",
		"from", active.ID,
		"generation_id", gen.ID,
		"as_of", asOf,
		"activated", activated,
	)
	return gen.ID, nil
}
