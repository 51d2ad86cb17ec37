package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/health"
	"github.com/kimjw0623/find-angel-sub000/internal/market"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
	"github.com/kimjw0623/find-angel-sub000/internal/scheduler"
	"github.com/kimjw0623/find-angel-sub000/internal/signal"
	"github.com/kimjw0623/find-angel-sub000/internal/store"
	"github.com/kimjw0623/find-angel-sub000/internal/tracing"
)

// DefaultSchedule runs a cycle on the hour and half hour.
const DefaultSchedule = "0 0,30 * * * *"

// Fetcher sends a batch of searches and returns one result per query in
// input order. *scheduler.Scheduler implements it.
type Fetcher interface {
	Schedule(ctx context.Context, queries []market.SearchQuery) []scheduler.Result
}

type Config struct {
	// Schedule is a six field cron expression (with seconds).
	Schedule   string
	Grades     []model.Grade
	RunOnStart bool
}

// Report summarises one collection cycle.
type Report struct {
	Presets       int
	FailedPresets int
	Pages         int
	Listings      int
	Dropped       int
	// Closed lists the categories whose listings were checked for
	// disappearance. A category with any failed preset is left alone.
	Closed []model.Category
	Unseen store.UnseenResult
}

// Collector walks every preset to the last page and records what it saw
// into listing history.
type Collector struct {
	fetcher  Fetcher
	listings store.ListingRepository
	pub      signal.Publisher
	cfg      Config
	health   *health.Component
	logger   *slog.Logger

	running sync.Mutex
	nowFn   func() time.Time
}

func New(fetcher Fetcher, listings store.ListingRepository, pub signal.Publisher, cfg Config, component *health.Component, logger *slog.Logger) *Collector {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if len(cfg.Grades) == 0 {
		cfg.Grades = []model.Grade{model.GradeAncient, model.GradeRelic}
	}
	if component == nil {
		component = health.NewComponent("collector")
	}
	return &Collector{
		fetcher:  fetcher,
		listings: listings,
		pub:      pub,
		cfg:      cfg,
		health:   component,
		logger:   logger.With("component", "collector"),
		nowFn:    time.Now,
	}
}

// Run collects on the configured schedule until ctx is done.
func (c *Collector) Run(ctx context.Context) error {
	if c.cfg.RunOnStart {
		c.Tick(ctx)
	}

	cr := cron.New(cron.WithSeconds())
	if _, err := cr.AddFunc(c.cfg.Schedule, func() { c.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.cfg.Schedule, err)
	}
	cr.Start()
	c.logger.Info("collector started", "schedule", c.cfg.Schedule, "grades", c.cfg.Grades)

	<-ctx.Done()
	<-cr.Stop().Done()
	c.logger.Info("collector stopped")
	return nil
}

// Tick runs one cycle unless the previous one is still going.
func (c *Collector) Tick(ctx context.Context) {
	if !c.running.TryLock() {
		c.logger.Warn("previous collection still running, tick skipped")
		return
	}
	defer c.running.Unlock()

	start := time.Now()
	report, err := c.Collect(ctx)
	if err != nil {
		if c.health.RecordFailure(err) {
			c.logger.Error("collector unhealthy", "error", err)
		} else {
			c.logger.Warn("collection failed", "error", err)
		}
		return
	}
	c.health.RecordSuccess(time.Since(start))
	c.logger.Info("collection completed",
		"presets", report.Presets,
		"failed_presets", report.FailedPresets,
		"pages", report.Pages,
		"listings", report.Listings,
		"sold", report.Unseen.Sold,
		"expired", report.Unseen.Expired,
		"duration", time.Since(start),
	)
}

// Collect runs one full cycle: the first page of every preset, then the
// remaining pages each first page announced. Everything fetched is stored
// as seen at the cycle start, then listings of fully collected categories
// that were not seen are closed out.
func (c *Collector) Collect(ctx context.Context) (*Report, error) {
	ctx, span := tracing.Tracer("collector").Start(ctx, "collector.collect")
	defer span.End()

	seenAt := c.nowFn()
	presets := Presets(c.cfg.Grades)
	report := &Report{Presets: len(presets)}

	failed := make(map[int]bool)
	var listings []model.Listing

	first := make([]market.SearchQuery, len(presets))
	for i, p := range presets {
		first[i] = p.Query
	}

	var (
		rest   []market.SearchQuery
		owners []int
	)
	for i, res := range c.fetcher.Schedule(ctx, first) {
		if res.Err != nil {
			failed[i] = true
			c.logger.Warn("preset first page failed", "preset", presets[i].Key, "error", res.Err)
			continue
		}
		report.Pages++
		report.Dropped += res.Page.Dropped
		listings = append(listings, res.Page.Listings...)
		for page := 2; page <= PageCount(res.Page.TotalCount); page++ {
			rest = append(rest, presets[i].Query.WithPage(page))
			owners = append(owners, i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for j, res := range c.fetcher.Schedule(ctx, rest) {
		if res.Err != nil {
			if !failed[owners[j]] {
				c.logger.Warn("preset page failed", "preset", presets[owners[j]].Key, "page", rest[j].Page, "error", res.Err)
			}
			failed[owners[j]] = true
			continue
		}
		report.Pages++
		report.Dropped += res.Page.Dropped
		listings = append(listings, res.Page.Listings...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.FailedPresets = len(failed)
	metrics.CollectorMalformedRows.Add(float64(report.Dropped))

	if len(listings) > 0 {
		n, err := c.listings.UpsertBatch(ctx, listings, seenAt)
		if err != nil {
			tracing.Fail(span, err)
			return nil, fmt.Errorf("upsert listings: %w", err)
		}
		report.Listings = n
		metrics.CollectorListingsUpserted.Add(float64(n))
	}

	report.Closed = completeCategories(presets, failed)
	if len(report.Closed) > 0 {
		unseen, err := c.listings.MarkUnseen(ctx, report.Closed, seenAt, c.nowFn())
		if err != nil {
			tracing.Fail(span, err)
			return nil, fmt.Errorf("mark unseen listings: %w", err)
		}
		report.Unseen = unseen
		metrics.CollectorStatusTransitions.WithLabelValues(string(model.ListingStatusSold)).Add(float64(unseen.Sold))
		metrics.CollectorStatusTransitions.WithLabelValues(string(model.ListingStatusExpired)).Add(float64(unseen.Expired))
	}

	span.SetAttributes(
		attribute.Int("pages", report.Pages),
		attribute.Int("listings", report.Listings),
		attribute.Int("failed_presets", report.FailedPresets),
	)

	msg := signal.Message{Type: signal.CollectionCompleted, At: seenAt, Source: "collector"}
	if err := c.pub.Publish(ctx, msg); err != nil {
		c.logger.Warn("publish collection signal failed", "error", err)
	}
	return report, nil
}

// completeCategories returns, in preset order, the categories none of whose
// presets failed.
func completeCategories(presets []Preset, failed map[int]bool) []model.Category {
	broken := make(map[model.Category]bool)
	for i := range failed {
		broken[presets[i].Query.Category] = true
	}
	seen := make(map[model.Category]bool)
	var out []model.Category
	for _, p := range presets {
		cat := p.Query.Category
		if broken[cat] || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	return out
}
