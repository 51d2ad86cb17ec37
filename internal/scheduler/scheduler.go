package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kimjw0623/find-angel-sub000/internal/market"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
	"github.com/kimjw0623/find-angel-sub000/internal/retry"
	"github.com/kimjw0623/find-angel-sub000/internal/tracing"
)

// Searcher performs one search with one credential token.
type Searcher interface {
	Search(ctx context.Context, token string, q market.SearchQuery) (*market.Response, error)
}

type Config struct {
	// MaxAttempts bounds retries of transient failures per request.
	// Rate-limited responses do not count.
	MaxAttempts int
	// RetryDelay is the wait after a transient failure. When MaxRetryDelay
	// is above it the wait doubles per attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// MaxInFlight bounds concurrent requests across every Schedule call.
	MaxInFlight int64
}

// Result is the terminal outcome of one scheduled request. Exactly one of
// Page and Err is set.
type Result struct {
	Page *market.Page
	Err  error
}

type Scheduler struct {
	pool     *Pool
	searcher Searcher
	cfg      Config
	sem      *semaphore.Weighted
	logger   *slog.Logger

	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
}

func New(pool *Pool, searcher Searcher, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 100
	}
	return &Scheduler{
		pool:     pool,
		searcher: searcher,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxInFlight),
		logger:   logger.With("component", "scheduler"),
		nowFn:    time.Now,
		sleepFn:  sleepCtx,
	}
}

// Pool returns the credential pool the scheduler draws from.
func (s *Scheduler) Pool() *Pool {
	return s.pool
}

// Schedule sends every query and returns one Result per query, in input
// order. Rate-limited requests are retried until they succeed; transient
// failures are retried up to MaxAttempts; a terminal failure of one query
// never holds back the others. Cancelling ctx ends scheduling and marks the
// still pending queries with the context error.
func (s *Scheduler) Schedule(ctx context.Context, queries []market.SearchQuery) []Result {
	results := make([]Result, len(queries))
	if len(queries) == 0 {
		return results
	}
	attempts := make([]int, len(queries))
	pending := make([]int, len(queries))
	for i := range pending {
		pending[i] = i
	}

	ctx, span := tracing.Tracer("scheduler").Start(ctx, "scheduler.schedule",
		otelTrace.WithAttributes(attribute.Int("requests", len(queries))),
	)
	defer span.End()

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			for _, idx := range pending {
				results[idx].Err = err
			}
			tracing.Fail(span, err)
			return results
		}

		grants, wait := s.pool.Acquire(len(pending), s.nowFn())
		if len(grants) == 0 {
			s.logger.Debug("no credential has quota, waiting", "wait", wait, "pending", len(pending))
			metrics.SchedulerQuotaWaitSeconds.Add(wait.Seconds())
			_ = s.sleepFn(ctx, wait)
			continue
		}

		outcomes := make([]flushOutcome, len(grants))
		var g errgroup.Group
		offset := 0
		for i, grant := range grants {
			i, grant := i, grant
			idxs := pending[offset : offset+grant.Count]
			offset += grant.Count
			g.Go(func() error {
				outcomes[i] = s.flush(ctx, grant.Credential, idxs, queries, results, attempts)
				return nil
			})
		}
		_ = g.Wait()

		next := make([]int, 0, len(pending)-offset)
		next = append(next, pending[offset:]...)
		backoff := 0
		for _, o := range outcomes {
			next = append(next, o.retry...)
			if o.backoff > backoff {
				backoff = o.backoff
			}
		}
		sort.Ints(next)
		pending = next

		if backoff > 0 && len(pending) > 0 {
			_ = s.sleepFn(ctx, retry.Backoff{Base: s.cfg.RetryDelay, Max: s.cfg.MaxRetryDelay}.Delay(backoff))
		}
	}
	return results
}

type flushOutcome struct {
	retry []int
	// backoff is the highest attempt count among transient failures, zero
	// when nothing failed transiently.
	backoff int
}

// flush sends one credential's sub-batch concurrently, records terminal
// results and settles the credential's quota from the responses.
func (s *Scheduler) flush(ctx context.Context, cred *Credential, idxs []int, queries []market.SearchQuery, results []Result, attempts []int) flushOutcome {
	start := time.Now()
	responses := make([]*market.Response, len(idxs))
	errs := make([]error, len(idxs))

	var g errgroup.Group
	for i, idx := range idxs {
		i, idx := i, idx
		g.Go(func() error {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				return nil
			}
			defer s.sem.Release(1)
			if err := cred.limiter.Wait(ctx); err != nil {
				errs[i] = err
				return nil
			}
			responses[i], errs[i] = s.searcher.Search(ctx, cred.token, queries[idx])
			return nil
		})
	}
	_ = g.Wait()

	rep := flushReport{sent: len(idxs)}
	var out flushOutcome
	for i, idx := range idxs {
		resp, err := responses[i], errs[i]
		switch {
		case err != nil:
			s.retryOrFail(idx, err, attempts, results, &out, cred)
		case resp.StatusCode == http.StatusTooManyRequests:
			rep.rateLimited = true
			rep.retryAfters = append(rep.retryAfters, resp.RetryAfter)
			out.retry = append(out.retry, idx)
			metrics.SchedulerRequestsTotal.WithLabelValues(cred.ID, "rate_limited").Inc()
		case resp.StatusCode == http.StatusOK:
			recordQuota(&rep, resp, true)
			if resp.DecodeErr != nil {
				results[idx] = Result{Err: retry.Terminal(fmt.Errorf("page %d: %w", queries[idx].Page, resp.DecodeErr))}
				metrics.SchedulerRequestsTotal.WithLabelValues(cred.ID, "malformed").Inc()
				metrics.SchedulerTerminalErrors.WithLabelValues("malformed").Inc()
				continue
			}
			results[idx] = Result{Page: resp.Page}
			metrics.SchedulerRequestsTotal.WithLabelValues(cred.ID, "ok").Inc()
		default:
			recordQuota(&rep, resp, false)
			s.retryOrFail(idx, &market.StatusError{Code: resp.StatusCode}, attempts, results, &out, cred)
		}
	}

	s.pool.settle(cred, rep, s.nowFn())
	metrics.SchedulerFlushLatency.WithLabelValues(cred.ID).Observe(time.Since(start).Seconds())
	if rep.rateLimited {
		s.logger.Warn("credential rate limited", "credential", cred.ID, "requests", len(idxs))
	}
	return out
}

func recordQuota(rep *flushReport, resp *market.Response, success bool) {
	switch {
	case resp.QuotaErr == nil && resp.Quota.Known:
		rep.quotas = append(rep.quotas, resp.Quota)
	case success:
		rep.quotaUnknown = true
	}
}

func (s *Scheduler) retryOrFail(idx int, err error, attempts []int, results []Result, out *flushOutcome, cred *Credential) {
	attempts[idx]++
	decision := retry.Classify(err)
	if decision.IsTransient() && attempts[idx] < s.cfg.MaxAttempts {
		out.retry = append(out.retry, idx)
		if attempts[idx] > out.backoff {
			out.backoff = attempts[idx]
		}
		metrics.SchedulerRequestsTotal.WithLabelValues(cred.ID, "retry").Inc()
		s.logger.Debug("retrying request", "credential", cred.ID, "index", idx,
			"attempt", attempts[idx], "reason", decision.Reason, "error", err)
		return
	}
	results[idx].Err = retry.Terminal(fmt.Errorf("request %d failed after %d attempt(s): %w", idx, attempts[idx], err))
	metrics.SchedulerRequestsTotal.WithLabelValues(cred.ID, "failed").Inc()
	metrics.SchedulerTerminalErrors.WithLabelValues(decision.Reason).Inc()
	s.logger.Warn("request failed", "credential", cred.ID, "index", idx,
		"attempts", attempts[idx], "reason", decision.Reason, "error", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
