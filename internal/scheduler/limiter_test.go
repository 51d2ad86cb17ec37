package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
)

func TestLimiter_CountsPacingWaits(t *testing.T) {
	waits := metrics.SchedulerPacingWaits.WithLabelValues("cred-pacing")
	before := testutil.ToFloat64(waits)

	l := NewLimiter(1, time.Hour, 1, "cred-pacing")
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, before, testutil.ToFloat64(waits), "burst token needs no wait")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, before+1, testutil.ToFloat64(waits))
}

func TestLimiter_CancelledWaitReturnsToken(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond, 1, "cred-cancel")
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}
