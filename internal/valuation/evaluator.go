package valuation

import (
	"math"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/pattern"
	"github.com/kimjw0623/find-angel-sub000/internal/patterncache"
)

// Config holds the notable rule. A listing is notable when its fair price is
// at least MinFairPrice and its price is at most fair × ratio(fair), where
// ratio rises along a sigmoid from MinRatio to MaxRatio centred at two
// thirds of MaxPrice.
type Config struct {
	MinFairPrice int64   `yaml:"min_fair_price"`
	MinRatio     float64 `yaml:"min_ratio"`
	MaxRatio     float64 `yaml:"max_ratio"`
	MaxPrice     float64 `yaml:"max_price"`
	Steepness    float64 `yaml:"steepness"`
}

func DefaultConfig() Config {
	return Config{
		MinFairPrice: 20000,
		MinRatio:     0.5,
		MaxRatio:     0.75,
		MaxPrice:     400000,
		Steepness:    3e-5,
	}
}

type Evaluation struct {
	Listing model.Listing
	// Role is empty for bracelets.
	Role       model.Role
	FairPrice  int64
	Threshold  int64
	Ratio      float64
	Profit     int64
	PatternKey string
	Success    *model.SuccessStats
	Notable    bool
}

type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Ratio returns the price to fair ratio at or below which a listing with the
// given fair price is notable.
func (e *Evaluator) Ratio(fair int64) float64 {
	mid := e.cfg.MaxPrice * 2 / 3
	return e.cfg.MinRatio + (e.cfg.MaxRatio-e.cfg.MinRatio)/(1+math.Exp(-e.cfg.Steepness*(float64(fair)-mid)))
}

// Evaluate prices a listing against one snapshot. ok is false when the
// listing has no buy price, is below the minimum quality, or matches no
// pattern.
func (e *Evaluator) Evaluate(snap *patterncache.Snapshot, l model.Listing) (Evaluation, bool) {
	if l.Price <= 0 {
		return Evaluation{}, false
	}

	var (
		ev Evaluation
		ok bool
	)
	switch {
	case l.Category.IsAccessory():
		ev, ok = e.accessory(snap, l)
	case l.Category == model.CategoryBracelet:
		ev, ok = e.bracelet(snap, l)
	}
	if !ok || ev.FairPrice <= 0 {
		return Evaluation{}, false
	}

	ev.Listing = l
	ev.Ratio = float64(l.Price) / float64(ev.FairPrice)
	ev.Profit = ev.FairPrice - l.Price
	ev.Threshold = int64(float64(ev.FairPrice) * e.Ratio(ev.FairPrice))
	ev.Notable = ev.FairPrice >= e.cfg.MinFairPrice && l.Price <= ev.Threshold
	return ev, true
}

// accessory takes the better of the role prices.
func (e *Evaluator) accessory(snap *patterncache.Snapshot, l model.Listing) (Evaluation, bool) {
	attrs, ok := l.Accessory()
	if !ok || attrs.Quality < model.MinQuality {
		return Evaluation{}, false
	}

	var best Evaluation
	found := false
	for _, role := range model.Roles {
		key, ok := pattern.AccessoryKey(l, role)
		if !ok {
			continue
		}
		p, err := snap.Lookup(key)
		if err != nil {
			continue
		}
		price, ok := accessoryPrice(p, attrs, role)
		if !ok {
			continue
		}
		if !found || price > best.FairPrice {
			best = Evaluation{Role: role, FairPrice: price, PatternKey: key.String(), Success: p.Success}
			found = true
		}
	}
	return best, found
}

// accessoryPrice is the quality baseline plus the marginal price of every
// common option the listing carries for the role.
func accessoryPrice(p *model.AccessoryPattern, attrs *model.AccessoryAttrs, role model.Role) (int64, bool) {
	price, ok := p.Baseline(attrs.Quality)
	if !ok {
		return 0, false
	}
	for _, name := range model.RoleCommonOptions[role] {
		if o, ok := attrs.Option(name); ok {
			price += p.CommonBonus(name, o.Raw)
		}
	}
	return price, true
}

func (e *Evaluator) bracelet(snap *patterncache.Snapshot, l model.Listing) (Evaluation, bool) {
	keys := pattern.ExpandBracelet(l)
	p, _, err := snap.BraceletFallback(keys)
	if err != nil {
		return Evaluation{}, false
	}
	return Evaluation{FairPrice: p.Price, PatternKey: p.Key.String(), Success: p.Success}, true
}
