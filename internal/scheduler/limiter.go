package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
)

// Limiter paces requests of one credential so a full quota is spread over
// its window instead of being spent in one burst.
type Limiter struct {
	limiter    *rate.Limiter
	credential string
}

// NewLimiter allows quota events per window with a burst of burst.
func NewLimiter(quota int, window time.Duration, burst int, credential string) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	perSecond := float64(quota) / window.Seconds()
	return &Limiter{
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
		credential: credential,
	}
}

// Wait blocks until the limiter allows one request, or ctx is done.
// Uses Reserve() so a cancelled wait hands its token back.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token for %s", l.credential)
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	metrics.SchedulerPacingWaits.WithLabelValues(l.credential).Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
