package patterncache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
)

type State int32

const (
	// StateStale holds a generation that may not be the newest.
	StateStale State = iota
	StateRefreshing
)

func (s State) String() string {
	if s == StateRefreshing {
		return "REFRESHING"
	}
	return "STALE"
}

// Source is the subset of the pattern store the cache reads.
type Source interface {
	ActiveGeneration(ctx context.Context) (*model.Generation, error)
	LoadGeneration(ctx context.Context, id uuid.UUID) (*model.PatternSet, error)
}

// Cache serves the active generation to readers without locks. Reload builds
// the next snapshot off to the side and publishes it with one pointer swap,
// so a reader holding a *Snapshot sees one generation for as long as it
// keeps it.
type Cache struct {
	source  Source
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
	state   atomic.Int32
	// reloadMu serializes reloads; readers never take it.
	reloadMu sync.Mutex
}

func New(source Source, logger *slog.Logger) *Cache {
	c := &Cache{
		source: source,
		logger: logger.With("component", "pattern_cache"),
	}
	c.current.Store(emptySnapshot())
	return c
}

// Snapshot returns the current snapshot. Callers should take it once per
// unit of work so every lookup in that unit hits the same generation.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

func (c *Cache) State() State {
	return State(c.state.Load())
}

// Load reads the active generation at startup. An empty store is not an
// error; the cache stays empty until a generation appears.
func (c *Cache) Load(ctx context.Context) error {
	_, err := c.Reload(ctx, "startup")
	return err
}

// Reload swaps in the active generation when it differs from the one held.
// It reports whether a swap happened. On error the old snapshot stays.
func (c *Cache) Reload(ctx context.Context, trigger string) (bool, error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	c.state.Store(int32(StateRefreshing))
	defer c.state.Store(int32(StateStale))

	start := time.Now()
	swapped, err := c.reload(ctx)
	switch {
	case err != nil:
		metrics.CacheReloadsTotal.WithLabelValues(trigger, "error").Inc()
		c.logger.Warn("pattern cache reload failed", "trigger", trigger, "error", err)
	case swapped:
		metrics.CacheReloadsTotal.WithLabelValues(trigger, "swapped").Inc()
		snap := c.current.Load()
		acc, br := snap.Size()
		c.logger.Info("pattern cache swapped",
			"trigger", trigger,
			"generation_id", snap.GenerationID(),
			"as_of", snap.Generation().AsOf,
			"accessory_patterns", acc,
			"bracelet_patterns", br,
			"elapsed", time.Since(start).String(),
		)
	default:
		metrics.CacheReloadsTotal.WithLabelValues(trigger, "unchanged").Inc()
	}
	return swapped, err
}

func (c *Cache) reload(ctx context.Context) (bool, error) {
	gen, err := c.source.ActiveGeneration(ctx)
	if err != nil {
		return false, fmt.Errorf("get active generation: %w", err)
	}
	if gen == nil {
		c.logger.Debug("no active generation")
		return false, nil
	}
	if gen.ID == c.current.Load().GenerationID() {
		return false, nil
	}

	set, err := c.source.LoadGeneration(ctx, gen.ID)
	if err != nil {
		return false, err
	}
	if set == nil {
		// Pruned between the two reads; the next reload picks up its successor.
		return false, fmt.Errorf("generation %s disappeared", gen.ID)
	}
	c.current.Store(NewSnapshot(set))
	return true, nil
}
