package valuation

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kimjw0623/find-angel-sub000/internal/alert"
	"github.com/kimjw0623/find-angel-sub000/internal/cache"
	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
	"github.com/kimjw0623/find-angel-sub000/internal/patterncache"
	"github.com/kimjw0623/find-angel-sub000/internal/scan"
)

const DefaultDedupeCapacity = 50000

// Scanner is one horizon runner.
type Scanner interface {
	Horizon() scan.Horizon
	Run(ctx context.Context, visit scan.Visitor) error
}

// Loop drives every horizon concurrently and evaluates what they discover.
type Loop struct {
	scanners  []Scanner
	patterns  *patterncache.Cache
	evaluator *Evaluator
	sink      alert.Alerter
	seen      *cache.ShardedLRU[uuid.UUID, struct{}]
	logger    *slog.Logger
}

func NewLoop(patterns *patterncache.Cache, evaluator *Evaluator, sink alert.Alerter, dedupeCapacity int, logger *slog.Logger, scanners ...Scanner) *Loop {
	if dedupeCapacity <= 0 {
		dedupeCapacity = DefaultDedupeCapacity
	}
	if sink == nil {
		sink = &alert.NoopAlerter{}
	}
	return &Loop{
		scanners:  scanners,
		patterns:  patterns,
		evaluator: evaluator,
		sink:      sink,
		// A listing cannot reappear after it expires, so entries live until
		// the listing's expiry.
		seen: cache.NewShardedLRU[uuid.UUID, struct{}](dedupeCapacity, 72*time.Hour, 0, func(id uuid.UUID) uint32 {
			return binary.BigEndian.Uint32(id[12:])
		}),
		logger: logger.With("component", "valuation"),
	}
}

// Run blocks until ctx is done or a scanner returns an error.
func (l *Loop) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range l.scanners {
		s := s
		horizon := s.Horizon().String()
		g.Go(func() error {
			return s.Run(ctx, func(ctx context.Context, listing model.Listing) {
				l.visit(ctx, horizon, listing)
			})
		})
	}
	return g.Wait()
}

func (l *Loop) visit(ctx context.Context, horizon string, listing model.Listing) {
	id := listing.ID
	if id == uuid.Nil {
		id = model.Fingerprint(listing)
	}
	if !l.seen.Add(id, struct{}{}, listing.Expiry) {
		metrics.ValuationEvaluatedTotal.WithLabelValues(listing.Category.String(), "duplicate").Inc()
		return
	}

	snap := l.patterns.Snapshot()
	ev, ok := l.evaluator.Evaluate(snap, listing)
	if !ok {
		metrics.ValuationEvaluatedTotal.WithLabelValues(listing.Category.String(), "unpriced").Inc()
		return
	}
	if !ev.Notable {
		metrics.ValuationEvaluatedTotal.WithLabelValues(listing.Category.String(), "ordinary").Inc()
		return
	}

	metrics.ValuationEvaluatedTotal.WithLabelValues(listing.Category.String(), "notable").Inc()
	role := string(ev.Role)
	if role == "" {
		role = "any"
	}
	metrics.ValuationNotableTotal.WithLabelValues(listing.Category.String(), role).Inc()

	l.logger.Info("notable listing",
		"horizon", horizon,
		"listing_id", id,
		"category", listing.Category,
		"price", listing.Price,
		"fair_price", ev.FairPrice,
		"ratio", ev.Ratio,
		"pattern", ev.PatternKey,
		"generation_id", snap.GenerationID(),
	)

	event := alert.NotableListing{
		Listing:      listing,
		FairPrice:    ev.FairPrice,
		Ratio:        ev.Ratio,
		Role:         ev.Role,
		PatternKey:   ev.PatternKey,
		GenerationID: snap.GenerationID(),
		Horizon:      horizon,
		Success:      ev.Success,
	}
	if err := l.sink.Send(ctx, event.Alert()); err != nil {
		l.logger.Warn("notable listing alert failed", "listing_id", id, "error", err)
	}
}
