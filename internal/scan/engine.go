package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/market"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
	"github.com/kimjw0623/find-angel-sub000/internal/scheduler"
	"github.com/kimjw0623/find-angel-sub000/internal/tracing"
)

// Scheduler delivers one result per query.
type Scheduler interface {
	Schedule(ctx context.Context, queries []market.SearchQuery) []scheduler.Result
}

// Visitor receives each newly discovered listing exactly once per horizon.
type Visitor func(ctx context.Context, l model.Listing)

type CycleStats struct {
	StartPage int
	Pages     int
	Failed    int
	Visited   int
	Skipped   int
	// Crossed is true when the cycle reached the previous watermark.
	Crossed bool
	// Capped is true when the cycle stopped at MaxPages before crossing.
	Capped    bool
	Committed bool
}

// Engine walks one horizon of the expiry ordered feed. Only the goroutine
// running cycles mutates the cursor; Cursor may be read concurrently.
type Engine struct {
	cfg    HorizonConfig
	sched  Scheduler
	logger *slog.Logger
	nowFn  func() time.Time

	mu     sync.RWMutex
	cursor Cursor
}

func NewEngine(cfg HorizonConfig, sched Scheduler, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:    cfg,
		sched:  sched,
		logger: logger.With("component", "scan_engine", "horizon", cfg.Horizon.String()),
		nowFn:  time.Now,
		cursor: Cursor{Horizon: cfg.Horizon},
	}
}

// Cursor returns a copy of the committed cursor.
func (e *Engine) Cursor() Cursor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := Cursor{Horizon: e.cursor.Horizon}
	if e.cursor.Watermark != nil {
		w := *e.cursor.Watermark
		out.Watermark = &w
	}
	if e.cursor.PageEstimate != nil {
		p := *e.cursor.PageEstimate
		out.PageEstimate = &p
	}
	return out
}

func (e *Engine) Horizon() Horizon {
	return e.cfg.Horizon
}

// cycleState is the progress of one cycle before it is committed.
type cycleState struct {
	start         int
	prev          time.Time
	candidate     *time.Time
	candidatePage int
	// firstPage is the page of the first in-window listing seen; firstCrossed
	// is true when that listing was already at or below the watermark.
	firstPage    int
	firstCrossed bool
	sawAny       bool
	// sawListings is true once any page returned listings, in window or not.
	sawListings bool
	totalCount  int
}

// RunCycle fetches batches of pages from the starting page and hands every
// listing newer than the watermark to visit, until a listing at or below the
// watermark or a batch of empty pages ends the cycle. The cursor is committed
// only when the cycle ends that way with every page fetched. A failed page
// or the MaxPages cap leaves the cursor where it was, so the next cycle
// walks the same range again; a cancelled cycle commits nothing.
func (e *Engine) RunCycle(ctx context.Context, visit Visitor) (CycleStats, error) {
	now := e.nowFn()
	ctx, span := tracing.Tracer("scan").Start(ctx, "scan.cycle",
		otelTrace.WithAttributes(attribute.String("horizon", e.cfg.Horizon.String())),
	)
	defer span.End()

	state, err := e.begin(ctx, now)
	if err != nil {
		return CycleStats{}, err
	}
	stats := CycleStats{StartPage: state.start}
	edge := now.Add(e.cfg.Window)

	for page := state.start; ; page += e.cfg.BatchSize {
		if page-state.start >= e.cfg.MaxPages {
			stats.Capped = true
			e.logger.Warn("page cap reached before the watermark, cursor kept", "pages", e.cfg.MaxPages)
			return stats, nil
		}

		queries := make([]market.SearchQuery, e.cfg.BatchSize)
		for i := range queries {
			queries[i] = e.cfg.Query.WithPage(page + i)
		}
		results := e.sched.Schedule(ctx, queries)
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		empty := true
		for i, res := range results {
			if res.Err != nil {
				stats.Failed++
				empty = false
				e.logger.Warn("page fetch failed", "page", page+i, "error", res.Err)
				continue
			}
			state.totalCount = res.Page.TotalCount
			if res.Page.Empty() {
				continue
			}
			empty = false
			state.sawListings = true
			stats.Pages++
			if crossed := e.walkPage(ctx, page+i, res.Page.Listings, edge, &state, &stats, visit); crossed {
				stats.Crossed = true
				if stats.Failed == 0 {
					stats.Committed = e.commit(state)
				}
				return stats, nil
			}
		}
		if stats.Failed > 0 {
			return stats, nil
		}
		if empty {
			break
		}
	}

	stats.Committed = e.commit(state)
	return stats, nil
}

// walkPage visits the new listings of one page and reports whether the
// watermark was crossed.
func (e *Engine) walkPage(ctx context.Context, page int, listings []model.Listing, edge time.Time, state *cycleState, stats *CycleStats, visit Visitor) bool {
	for _, l := range listings {
		if e.cfg.SkipBeyondWindow && !l.Expiry.Before(edge) {
			stats.Skipped++
			continue
		}
		crossed := !l.Expiry.After(state.prev)
		if !state.sawAny {
			state.sawAny = true
			state.firstPage = page
			state.firstCrossed = crossed
		}
		if crossed {
			return true
		}
		if state.candidate == nil {
			expiry := l.Expiry
			state.candidate = &expiry
			state.candidatePage = page
		}
		visit(ctx, l)
		stats.Visited++
		metrics.ScanListingsVisited.WithLabelValues(e.cfg.Horizon.String()).Inc()
	}
	return false
}

// begin initializes the cursor on the first cycle and returns the cycle's
// starting point.
func (e *Engine) begin(ctx context.Context, now time.Time) (cycleState, error) {
	cur := e.Cursor()
	if cur.Watermark == nil {
		w := now.Add(e.cfg.Window - e.cfg.Buffer)
		cur.Watermark = &w
	}
	if e.cfg.TrackPage && cur.PageEstimate == nil {
		est := e.cfg.InitialPageEstimate
		if e.cfg.Probe {
			probed, err := e.Probe(ctx, now)
			if err != nil {
				if ctx.Err() != nil {
					return cycleState{}, ctx.Err()
				}
				e.logger.Warn("page probe failed, using initial estimate", "estimate", est, "error", err)
			} else {
				est = probed
			}
		}
		cur.PageEstimate = &est
	}

	e.mu.Lock()
	e.cursor = cur
	e.mu.Unlock()

	state := cycleState{start: 1, prev: *cur.Watermark}
	if e.cfg.TrackPage {
		state.start = *cur.PageEstimate - e.cfg.BatchSize
		if state.start < 1 {
			state.start = 1
		}
	}
	return state, nil
}

// commit advances the watermark to the cycle's first new expiry and records
// its page. When the very first listing of a cycle was already old and the
// cycle did not start at page 1, the new listings lie on earlier pages, so
// the estimate moves back one batch. A cycle that found nothing at all
// started past the end of the feed; the estimate moves to the last page.
func (e *Engine) commit(state cycleState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	committed := false
	if state.candidate != nil && state.candidate.After(*e.cursor.Watermark) {
		w := *state.candidate
		e.cursor.Watermark = &w
		committed = true
	}
	if e.cfg.TrackPage {
		switch {
		case state.candidate != nil:
			p := state.candidatePage
			e.cursor.PageEstimate = &p
		case state.sawAny && state.firstCrossed && state.firstPage == state.start && state.start > 1:
			p := state.start
			e.cursor.PageEstimate = &p
		case !state.sawListings && state.start > 1:
			p := lastPage(state.totalCount)
			if p >= state.start {
				p = state.start - 1
			}
			e.cursor.PageEstimate = &p
		}
	}

	horizon := e.cfg.Horizon.String()
	metrics.ScanWatermarkSeconds.WithLabelValues(horizon).Set(float64(e.cursor.Watermark.Unix()))
	if e.cursor.PageEstimate != nil {
		metrics.ScanPageEstimate.WithLabelValues(horizon).Set(float64(*e.cursor.PageEstimate))
	}
	return committed
}

func lastPage(total int) int {
	if total <= market.PageSize {
		return 1
	}
	return (total + market.PageSize - 1) / market.PageSize
}
