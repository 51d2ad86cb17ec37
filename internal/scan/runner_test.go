package scan

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/health"
)

func TestRunner_LoopsUntilCancelled(t *testing.T) {
	feed := &fakeFeed{}
	far := FarConfig()
	top := t0.Add(far.Window)
	feed.set(series(top, time.Second, 3)...)

	e := newTestEngine(far, feed)
	component := health.NewComponent("scan_far")
	r := NewRunner(e, time.Millisecond, component, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cycles := 0
	r.sleepFn = func(ctx context.Context, d time.Duration) error {
		cycles++
		if cycles == 3 {
			cancel()
		}
		return ctx.Err()
	}

	var visited int
	err := r.Run(ctx, func(_ context.Context, _ model.Listing) { visited++ })
	require.NoError(t, err)
	assert.Equal(t, 3, cycles)
	assert.Equal(t, 3, visited)
	assert.Equal(t, string(health.StatusHealthy), component.Snapshot().Status)
}

func TestRunner_RecordsFailedCycles(t *testing.T) {
	feed := &fakeFeed{failPages: map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}}
	e := newTestEngine(FarConfig(), feed)
	component := health.NewComponent("scan_far")
	r := NewRunner(e, time.Millisecond, component, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cycles := 0
	r.sleepFn = func(ctx context.Context, d time.Duration) error {
		cycles++
		if cycles == health.DefaultUnhealthyThreshold {
			cancel()
		}
		return ctx.Err()
	}

	require.NoError(t, r.Run(ctx, func(context.Context, model.Listing) {}))
	assert.Equal(t, string(health.StatusUnhealthy), component.Snapshot().Status)
}
