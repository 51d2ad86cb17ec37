package patterncache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kimjw0623/find-angel-sub000/internal/signal"
)

const DefaultPollInterval = 5 * time.Minute

// Watcher reloads the cache when a pattern_updated signal arrives and, as a
// fallback for lost signals, on a polling interval.
type Watcher struct {
	cache    *Cache
	sub      signal.Subscriber
	interval time.Duration
	logger   *slog.Logger
}

func NewWatcher(cache *Cache, sub signal.Subscriber, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		cache:    cache,
		sub:      sub,
		interval: interval,
		logger:   logger.With("component", "pattern_watcher"),
	}
}

func (w *Watcher) Run(ctx context.Context) error {
	var updates <-chan signal.Message
	if w.sub != nil {
		ch, err := w.sub.Subscribe(ctx, signal.PatternUpdated)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", signal.PatternUpdated, err)
		}
		updates = ch
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-updates:
			if !ok {
				// Fall back to polling only.
				w.logger.Warn("pattern signal subscription closed")
				updates = nil
				continue
			}
			if msg.GenerationID == w.cache.Snapshot().GenerationID() {
				continue
			}
			_, _ = w.cache.Reload(ctx, "signal")
		case <-ticker.C:
			_, _ = w.cache.Reload(ctx, "poll")
		}
	}
}
