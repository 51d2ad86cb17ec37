package pattern

import (
	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/store"
)

// Options tunes the per-group statistics.
type Options struct {
	// PriceFloor is the sample count at which IQR filtering kicks in.
	PriceFloor int
	// MinBucketSamples is the fewest samples a quality bucket, option tier
	// or bracelet key needs to produce a price.
	MinBucketSamples int
}

func (o Options) withDefaults() Options {
	if o.PriceFloor <= 0 {
		o.PriceFloor = DefaultPriceFloor
	}
	if o.MinBucketSamples < 2 {
		o.MinBucketSamples = 2
	}
	return o
}

type outcomeCount struct {
	sold, expired int
}

func (c *outcomeCount) add(status model.ListingStatus) {
	switch status {
	case model.ListingStatusSold:
		c.sold++
	case model.ListingStatusExpired:
		c.expired++
	}
}

func (c *outcomeCount) stats() *model.SuccessStats {
	if c == nil || c.sold+c.expired == 0 {
		return nil
	}
	return &model.SuccessStats{
		Rate:    float64(c.sold) / float64(c.sold+c.expired),
		Sold:    c.sold,
		Expired: c.expired,
	}
}

// Build computes every pattern row of one generation from a listing window.
// Keys with too few samples produce no row. The result is sorted by key.
func Build(gen model.Generation, window *store.ListingWindow, opts Options) *model.PatternSet {
	opts = opts.withDefaults()
	set := &model.PatternSet{Generation: gen}
	if window == nil {
		return set
	}

	accKeys := make(map[string]model.PatternKey)
	accGroups := make(map[string][]model.Listing)
	braKeys := make(map[string]model.BraceletKey)
	braPrices := make(map[string][]int64)

	for _, rec := range window.Priced {
		l := rec.Listing
		switch {
		case l.Category.IsAccessory():
			for _, role := range model.Roles {
				key, ok := AccessoryKey(l, role)
				if !ok {
					continue
				}
				k := key.String()
				accKeys[k] = key
				accGroups[k] = append(accGroups[k], l)
			}
		case l.Category == model.CategoryBracelet:
			for _, key := range ExpandBracelet(l) {
				k := key.String()
				braKeys[k] = key
				braPrices[k] = append(braPrices[k], l.Price)
			}
		}
	}

	outcomes := make(map[string]*outcomeCount)
	count := func(k string, status model.ListingStatus) {
		c, ok := outcomes[k]
		if !ok {
			c = &outcomeCount{}
			outcomes[k] = c
		}
		c.add(status)
	}
	for _, rec := range window.Outcomes {
		l := rec.Listing
		switch {
		case l.Category.IsAccessory():
			for _, role := range model.Roles {
				if key, ok := AccessoryKey(l, role); ok {
					count(key.String(), rec.Status)
				}
			}
		case l.Category == model.CategoryBracelet:
			for _, key := range ExpandBracelet(l) {
				count(key.String(), rec.Status)
			}
		}
	}

	for k, items := range accGroups {
		p := accessoryGroup(accKeys[k], items, opts)
		if p == nil {
			continue
		}
		p.Success = outcomes[k].stats()
		set.Accessories = append(set.Accessories, *p)
	}
	for k, prices := range braPrices {
		p := braceletGroup(braKeys[k], prices, opts)
		if p == nil {
			continue
		}
		p.Success = outcomes[k].stats()
		set.Bracelets = append(set.Bracelets, *p)
	}
	set.SortRows()
	return set
}
