package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kimjw0623/find-angel-sub000/internal/market"
)

var errProbeEmpty = errors.New("probe: empty feed")

// Probe binary searches for the first page whose last listing expires before
// now+Window, which is where the horizon's newest listings sit.
func (e *Engine) Probe(ctx context.Context, now time.Time) (int, error) {
	edge := now.Add(e.cfg.Window)

	first, err := e.fetch(ctx, 1)
	if err != nil {
		return 0, err
	}
	if first.Empty() {
		return 0, errProbeEmpty
	}

	hi := (first.TotalCount + market.PageSize - 1) / market.PageSize
	if hi > e.cfg.MaxPages {
		hi = e.cfg.MaxPages
	}
	if hi < 1 {
		hi = 1
	}
	lo := 1
	probes := 1
	for lo < hi {
		mid := (lo + hi) / 2
		page := first
		if mid != 1 {
			page, err = e.fetch(ctx, mid)
			if err != nil {
				return 0, err
			}
			probes++
		}
		if page.Empty() {
			hi = mid
			continue
		}
		last := page.Listings[len(page.Listings)-1]
		if !last.Expiry.Before(edge) {
			lo = mid + 1
			continue
		}
		hi = mid
	}
	e.logger.Info("probed starting page", "page", lo, "probes", probes)
	return lo, nil
}

func (e *Engine) fetch(ctx context.Context, page int) (*market.Page, error) {
	results := e.sched.Schedule(ctx, []market.SearchQuery{e.cfg.Query.WithPage(page)})
	if results[0].Err != nil {
		return nil, fmt.Errorf("probe page %d: %w", page, results[0].Err)
	}
	return results[0].Page, nil
}
