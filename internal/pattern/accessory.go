package pattern

import (
	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
)

// AccessoryKey returns the pattern key a listing falls into for role. Only
// the role's exclusive options with a resolved bucket take part in the key.
func AccessoryKey(l model.Listing, role model.Role) (model.PatternKey, bool) {
	attrs, ok := l.Accessory()
	if !ok || !l.Category.IsAccessory() {
		return model.PatternKey{}, false
	}
	key := model.PatternKey{
		Grade:    l.Grade,
		Category: l.Category,
		Level:    attrs.Level,
		Role:     role,
	}
	for _, name := range model.ExclusiveOptions[l.Category][role] {
		opt, found := attrs.Option(name)
		if !found || opt.Bucket == model.BucketNone {
			continue
		}
		key.Exclusive = append(key.Exclusive, model.ExclusiveOption{Name: name, Bucket: opt.Bucket})
	}
	model.SortExclusive(key.Exclusive)
	return key, true
}

// foreignExclusive reports whether the listing carries an exclusive option
// of another role that is not part of key. Such listings are priced for that
// other role and would inflate this group's baseline.
func foreignExclusive(l model.Listing, key model.PatternKey) bool {
	attrs, ok := l.Accessory()
	if !ok {
		return false
	}
	inKey := make(map[model.OptionName]bool, len(key.Exclusive))
	for _, e := range key.Exclusive {
		inKey[e.Name] = true
	}
	for _, role := range model.Roles {
		if role == key.Role {
			continue
		}
		for _, name := range model.ExclusiveOptions[key.Category][role] {
			if inKey[name] {
				continue
			}
			if opt, found := attrs.Option(name); found && opt.Bucket != model.BucketNone {
				return true
			}
		}
	}
	return false
}

// accessoryGroup computes one accessory pattern from the listings of a key.
// It returns nil when no quality bucket has enough samples.
func accessoryGroup(key model.PatternKey, items []model.Listing, opts Options) *model.AccessoryPattern {
	var priced []model.Listing
	for _, l := range items {
		if l.Price <= 0 || foreignExclusive(l, key) {
			continue
		}
		priced = append(priced, l)
	}
	if len(priced) == 0 {
		return nil
	}

	p := &model.AccessoryPattern{
		Key:           key,
		QualityPrices: make(map[int]int64),
		CommonOptions: make(map[model.OptionName][]model.TierPrice),
		SampleCount:   len(priced),
	}
	for _, threshold := range model.QualityThresholds {
		var prices []int64
		for _, l := range priced {
			if l.Quality() >= threshold {
				prices = append(prices, l.Price)
			}
		}
		if len(prices) < opts.MinBucketSamples {
			continue
		}
		if price, ok := ReasonablePrice(prices, opts.PriceFloor); ok {
			p.QualityPrices[threshold] = price
		}
	}
	if len(p.QualityPrices) == 0 {
		return nil
	}

	for _, name := range model.RoleCommonOptions[key.Role] {
		for _, tier := range model.CommonOptionTiers(name) {
			var marginals []int64
			for _, l := range priced {
				attrs, _ := l.Accessory()
				opt, found := attrs.Option(name)
				if !found || opt.Raw+1e-9 < tier {
					continue
				}
				baseline, ok := p.Baseline(l.Quality())
				if !ok {
					continue
				}
				marginals = append(marginals, l.Price-baseline)
			}
			if len(marginals) < opts.MinBucketSamples {
				continue
			}
			marginal, ok := ReasonablePrice(marginals, opts.PriceFloor)
			if !ok || marginal <= 0 {
				continue
			}
			p.CommonOptions[name] = append(p.CommonOptions[name], model.TierPrice{Tier: tier, Price: marginal})
		}
		if len(p.CommonOptions[name]) == 0 {
			delete(p.CommonOptions, name)
		}
	}
	return p
}
