package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimjw0623/find-angel-sub000/internal/market"
	"github.com/kimjw0623/find-angel-sub000/internal/retry"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   map[string]int
	handler func(token string, q market.SearchQuery, call int) (*market.Response, error)
}

func newFakeSearcher(handler func(token string, q market.SearchQuery, call int) (*market.Response, error)) *fakeSearcher {
	return &fakeSearcher{calls: make(map[string]int), handler: handler}
}

func (f *fakeSearcher) Search(_ context.Context, token string, q market.SearchQuery) (*market.Response, error) {
	f.mu.Lock()
	f.calls[token]++
	call := f.calls[token]
	f.mu.Unlock()
	return f.handler(token, q, call)
}

func (f *fakeSearcher) Calls(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[token]
}

func okResponse(q market.SearchQuery, remaining int, resetAt time.Time) *market.Response {
	return &market.Response{
		StatusCode: http.StatusOK,
		Page:       &market.Page{PageNo: q.Page},
		Quota:      market.Quota{Remaining: remaining, ResetAt: resetAt, Known: true},
	}
}

func newTestScheduler(t *testing.T, searcher Searcher, clock *fakeClock, sleeps *[]time.Duration, tokens ...string) *Scheduler {
	t.Helper()
	pool, err := NewPool(tokens, PoolConfig{})
	require.NoError(t, err)
	s := New(pool, searcher, Config{MaxAttempts: 3, RetryDelay: time.Second}, slog.Default())
	s.nowFn = clock.Now
	var mu sync.Mutex
	s.sleepFn = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		mu.Unlock()
		clock.Advance(d)
		return ctx.Err()
	}
	return s
}

func queries(n int) []market.SearchQuery {
	qs := make([]market.SearchQuery, n)
	for i := range qs {
		qs[i] = market.SearchQuery{Page: i + 1}
	}
	return qs
}

func TestSchedule_PartitionsAcrossCredentials(t *testing.T) {
	clock := &fakeClock{now: t0}
	searcher := newFakeSearcher(func(token string, q market.SearchQuery, _ int) (*market.Response, error) {
		return okResponse(q, 50, t0.Add(time.Minute)), nil
	})
	s := newTestScheduler(t, searcher, clock, nil, "tok-a", "tok-b")
	s.pool.creds[0].remaining = 5
	s.pool.creds[1].remaining = 10

	results := s.Schedule(context.Background(), queries(8))

	require.Len(t, results, 8)
	for i, r := range results {
		require.NoError(t, r.Err, "index %d", i)
		assert.Equal(t, i+1, r.Page.PageNo)
	}
	assert.Equal(t, 5, searcher.Calls("tok-a"))
	assert.Equal(t, 3, searcher.Calls("tok-b"))

	state := s.Pool().Snapshot()
	assert.Equal(t, 50, state[0].Remaining)
	assert.Equal(t, 50, state[1].Remaining)
}

func TestSchedule_RateLimitedIsRetriedOnAnotherCredential(t *testing.T) {
	clock := &fakeClock{now: t0}
	searcher := newFakeSearcher(func(token string, q market.SearchQuery, _ int) (*market.Response, error) {
		if token == "tok-a" {
			return &market.Response{StatusCode: http.StatusTooManyRequests, RetryAfter: 30 * time.Second}, nil
		}
		return okResponse(q, 90, t0.Add(time.Minute)), nil
	})
	s := newTestScheduler(t, searcher, clock, nil, "tok-a", "tok-b")

	results := s.Schedule(context.Background(), queries(1))

	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, searcher.Calls("tok-a"))
	assert.Equal(t, 1, searcher.Calls("tok-b"))

	state := s.Pool().Snapshot()
	assert.Equal(t, 0, state[0].Remaining)
	assert.Equal(t, t0.Add(31*time.Second), state[0].ResetAt)
}

func TestSchedule_TransientErrorsBecomeTerminalAfterMaxAttempts(t *testing.T) {
	clock := &fakeClock{now: t0}
	searcher := newFakeSearcher(func(token string, q market.SearchQuery, _ int) (*market.Response, error) {
		if q.Page == 2 {
			return nil, errors.New("read tcp: connection reset by peer")
		}
		return okResponse(q, 90, t0.Add(time.Minute)), nil
	})
	var sleeps []time.Duration
	s := newTestScheduler(t, searcher, clock, &sleeps, "tok-a")

	results := s.Schedule(context.Background(), queries(3))

	require.NoError(t, results[0].Err)
	require.NoError(t, results[2].Err)
	require.Error(t, results[1].Err)
	assert.Nil(t, results[1].Page)
	assert.Equal(t, retry.ClassTerminal, retry.Classify(results[1].Err).Class)
	assert.Equal(t, 5, searcher.Calls("tok-a"))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeps, "fixed delay by default")
}

func TestSchedule_RetryDelayGrowsUpToCap(t *testing.T) {
	clock := &fakeClock{now: t0}
	searcher := newFakeSearcher(func(token string, q market.SearchQuery, _ int) (*market.Response, error) {
		return nil, errors.New("upstream temporarily unavailable")
	})
	var sleeps []time.Duration
	s := newTestScheduler(t, searcher, clock, &sleeps, "tok-a")
	s.cfg.MaxAttempts = 4
	s.cfg.MaxRetryDelay = 3 * time.Second

	results := s.Schedule(context.Background(), queries(1))

	require.Error(t, results[0].Err)
	assert.Equal(t, 4, searcher.Calls("tok-a"))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeps)
}

func TestSchedule_ServerErrorIsRetried(t *testing.T) {
	clock := &fakeClock{now: t0}
	searcher := newFakeSearcher(func(token string, q market.SearchQuery, call int) (*market.Response, error) {
		if call == 1 {
			return &market.Response{StatusCode: http.StatusBadGateway}, nil
		}
		return okResponse(q, 90, t0.Add(time.Minute)), nil
	})
	s := newTestScheduler(t, searcher, clock, nil, "tok-a")

	results := s.Schedule(context.Background(), queries(1))
	require.NoError(t, results[0].Err)
	assert.Equal(t, 2, searcher.Calls("tok-a"))
}

func TestSchedule_MalformedIsTerminalForThatIndexOnly(t *testing.T) {
	clock := &fakeClock{now: t0}
	searcher := newFakeSearcher(func(token string, q market.SearchQuery, _ int) (*market.Response, error) {
		resp := okResponse(q, 90, t0.Add(time.Minute))
		if q.Page == 1 {
			resp.Page = nil
			resp.DecodeErr = market.ErrMalformed
		}
		return resp, nil
	})
	s := newTestScheduler(t, searcher, clock, nil, "tok-a")

	results := s.Schedule(context.Background(), queries(2))
	assert.ErrorIs(t, results[0].Err, market.ErrMalformed)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 2, searcher.Calls("tok-a"))
}

func TestSchedule_WaitsForQuotaReset(t *testing.T) {
	clock := &fakeClock{now: t0}
	searcher := newFakeSearcher(func(token string, q market.SearchQuery, _ int) (*market.Response, error) {
		return okResponse(q, 99, clock.Now().Add(time.Minute)), nil
	})
	var sleeps []time.Duration
	s := newTestScheduler(t, searcher, clock, &sleeps, "tok-a")
	s.pool.creds[0].remaining = 0
	s.pool.creds[0].resetAt = t0.Add(10 * time.Second)

	results := s.Schedule(context.Background(), queries(2))

	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.Len(t, sleeps, 1)
	assert.Equal(t, 10*time.Second+100*time.Millisecond, sleeps[0])
}

func TestSchedule_ContextCancelled(t *testing.T) {
	clock := &fakeClock{now: t0}
	searcher := newFakeSearcher(func(token string, q market.SearchQuery, _ int) (*market.Response, error) {
		return okResponse(q, 99, t0.Add(time.Minute)), nil
	})
	s := newTestScheduler(t, searcher, clock, nil, "tok-a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := s.Schedule(ctx, queries(3))

	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, searcher.Calls("tok-a"))
}
