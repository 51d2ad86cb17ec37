package pattern

import (
	"math"
	"sort"
	"strings"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
)

type braceletShape struct {
	typ   model.BraceletPatternType
	stats []model.Stat
}

// shape picks the single most specific pattern type the bracelet satisfies.
func shape(attrs *model.BraceletAttrs) (braceletShape, bool) {
	speed := attrs.HasSpecial(model.SpeedEffect)
	switch {
	case attrs.FixedCount == 2 && len(attrs.Combat) == 2:
		stats := []model.Stat{attrs.Combat[0], attrs.Combat[1]}
		sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
		return braceletShape{model.BraceletCombatPair, stats}, true
	case attrs.FixedCount == 2 && len(attrs.Combat) == 1 && len(attrs.Base) > 0:
		return braceletShape{model.BraceletCombatBase, []model.Stat{attrs.Combat[0], attrs.Base[0]}}, true
	case attrs.FixedCount == 2 && len(attrs.Combat) == 1 && speed:
		return braceletShape{model.BraceletCombatSpeed, []model.Stat{attrs.Combat[0]}}, true
	case attrs.FixedCount == 2 && len(attrs.Combat) == 1:
		return braceletShape{model.BraceletCombatMisc, []model.Stat{attrs.Combat[0]}}, true
	case attrs.FixedCount == 2 && len(attrs.Base) > 0 && speed:
		return braceletShape{model.BraceletBaseSpeed, []model.Stat{attrs.Base[0]}}, true
	case attrs.FixedCount == 1 && len(attrs.Combat) == 1:
		return braceletShape{model.BraceletCombatSingle, []model.Stat{attrs.Combat[0]}}, true
	}
	return braceletShape{}, false
}

// stepsAtOrBelow returns the thresholds of stat not above value, highest
// first.
func stepsAtOrBelow(stat string, grade model.Grade, value float64) []float64 {
	th, ok := model.BraceletThresholds(stat, grade)
	if !ok {
		return nil
	}
	var out []float64
	for i := len(th) - 1; i >= 0; i-- {
		if th[i] <= value+1e-9 {
			out = append(out, th[i])
		}
	}
	return out
}

func (s braceletShape) signature() string {
	names := make([]string, len(s.stats))
	for i, st := range s.stats {
		names[i] = st.Name
	}
	return strings.Join(names, "+")
}

// ClassifyBracelet returns the most specific key of a bracelet listing, with
// each stat rounded down to its threshold. Bracelets whose stats sit below
// the lowest threshold are not classified.
func ClassifyBracelet(l model.Listing) (model.BraceletKey, bool) {
	keys := ExpandBracelet(l)
	if len(keys) == 0 {
		return model.BraceletKey{}, false
	}
	return keys[0], true
}

// ExpandBracelet returns every key the bracelet is consistent with: its most
// specific key first, then each combination of lower thresholds, so coarser
// keys collect the prices of better bracelets too.
func ExpandBracelet(l model.Listing) []model.BraceletKey {
	attrs, ok := l.Bracelet()
	if !ok {
		return nil
	}
	sh, ok := shape(attrs)
	if !ok {
		return nil
	}
	steps := make([][]float64, len(sh.stats))
	for i, st := range sh.stats {
		steps[i] = stepsAtOrBelow(st.Name, l.Grade, st.Value)
		if len(steps[i]) == 0 {
			return nil
		}
	}

	sig := sh.signature()
	var keys []model.BraceletKey
	var walk func(depth int, acc []float64)
	walk = func(depth int, acc []float64) {
		if depth == len(steps) {
			keys = append(keys, model.BraceletKey{
				Grade:      l.Grade,
				Type:       sh.typ,
				Signature:  sig,
				Values:     model.JoinValues(acc),
				ExtraSlots: attrs.ExtraSlots,
			})
			return
		}
		for _, v := range steps[depth] {
			walk(depth+1, append(acc[:depth:depth], v))
		}
	}
	walk(0, make([]float64, 0, len(steps)))
	return keys
}

// Similar reports whether two keys describe the same bracelet up to one
// rounding step per stat.
func Similar(a, b model.BraceletKey) bool {
	if a.Grade != b.Grade || a.Type != b.Type || a.Signature != b.Signature || a.ExtraSlots != b.ExtraSlots {
		return false
	}
	av, bv := a.ValueList(), b.ValueList()
	names := strings.Split(a.Signature, "+")
	if len(av) != len(bv) || len(av) != len(names) {
		return false
	}
	for i := range av {
		if math.Abs(av[i]-bv[i]) > model.SimilarTolerance(names[i]) {
			return false
		}
	}
	return true
}

func braceletGroup(key model.BraceletKey, prices []int64, opts Options) *model.BraceletPattern {
	var valid []int64
	for _, p := range prices {
		if p > 0 {
			valid = append(valid, p)
		}
	}
	if len(valid) < opts.MinBucketSamples {
		return nil
	}
	price, ok := ReasonablePrice(valid, opts.PriceFloor)
	if !ok || price <= 0 {
		return nil
	}
	return &model.BraceletPattern{Key: key, Price: price, SampleCount: len(valid)}
}
