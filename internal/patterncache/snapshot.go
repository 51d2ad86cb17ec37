package patterncache

import (
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/metrics"
	"github.com/kimjw0623/find-angel-sub000/internal/pattern"
)

// ErrNotFound means no pattern exists for a key. It is an expected outcome
// for rare option combinations.
var ErrNotFound = errors.New("patterncache: pattern not found")

// Snapshot is an immutable, indexed view of one generation.
type Snapshot struct {
	generation  model.Generation
	accessories map[string]*model.AccessoryPattern
	bracelets   map[string]*model.BraceletPattern
	// families groups bracelet rows that may match each other as similar.
	families map[braceletFamily][]*model.BraceletPattern
}

type braceletFamily struct {
	grade      model.Grade
	typ        model.BraceletPatternType
	signature  string
	extraSlots int
}

func familyOf(k model.BraceletKey) braceletFamily {
	return braceletFamily{grade: k.Grade, typ: k.Type, signature: k.Signature, extraSlots: k.ExtraSlots}
}

// NewSnapshot indexes a loaded generation.
func NewSnapshot(set *model.PatternSet) *Snapshot {
	s := &Snapshot{
		generation:  set.Generation,
		accessories: make(map[string]*model.AccessoryPattern, len(set.Accessories)),
		bracelets:   make(map[string]*model.BraceletPattern, len(set.Bracelets)),
		families:    make(map[braceletFamily][]*model.BraceletPattern),
	}
	for i := range set.Accessories {
		p := &set.Accessories[i]
		s.accessories[p.Key.String()] = p
	}
	for i := range set.Bracelets {
		p := &set.Bracelets[i]
		s.bracelets[p.Key.String()] = p
		fam := familyOf(p.Key)
		s.families[fam] = append(s.families[fam], p)
	}
	return s
}

func emptySnapshot() *Snapshot {
	return NewSnapshot(&model.PatternSet{})
}

func (s *Snapshot) Generation() model.Generation {
	return s.generation
}

func (s *Snapshot) GenerationID() uuid.UUID {
	return s.generation.ID
}

// Size returns the accessory and bracelet row counts.
func (s *Snapshot) Size() (accessories, bracelets int) {
	return len(s.accessories), len(s.bracelets)
}

func (s *Snapshot) Lookup(key model.PatternKey) (*model.AccessoryPattern, error) {
	p, ok := s.accessories[key.String()]
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("accessory", "miss").Inc()
		return nil, ErrNotFound
	}
	metrics.CacheLookupsTotal.WithLabelValues("accessory", "hit").Inc()
	return p, nil
}

// Bracelet returns the row stored under key, or failing that the closest row
// whose values are all within the similar tolerance of key.
func (s *Snapshot) Bracelet(key model.BraceletKey) (*model.BraceletPattern, error) {
	if p, ok := s.bracelets[key.String()]; ok {
		metrics.CacheLookupsTotal.WithLabelValues("bracelet", "hit").Inc()
		return p, nil
	}

	want := key.ValueList()
	var best *model.BraceletPattern
	bestDist := math.Inf(1)
	for _, p := range s.families[familyOf(key)] {
		if !pattern.Similar(key, p.Key) {
			continue
		}
		d := distance(want, p.Key.ValueList())
		if d < bestDist || (d == bestDist && p.SampleCount > best.SampleCount) {
			best, bestDist = p, d
		}
	}
	if best == nil {
		metrics.CacheLookupsTotal.WithLabelValues("bracelet", "miss").Inc()
		return nil, ErrNotFound
	}
	metrics.CacheLookupsTotal.WithLabelValues("bracelet", "similar").Inc()
	return best, nil
}

func distance(a, b []float64) float64 {
	var d float64
	for i := range a {
		if i < len(b) {
			d += math.Abs(a[i] - b[i])
		}
	}
	return d
}

// BraceletFallback resolves a bracelet expansion, most specific key first.
// The most specific key may match a similar row; coarser keys must match
// exactly. The index of the key that matched is returned with the row.
func (s *Snapshot) BraceletFallback(keys []model.BraceletKey) (*model.BraceletPattern, int, error) {
	if len(keys) == 0 {
		return nil, -1, ErrNotFound
	}
	if p, err := s.Bracelet(keys[0]); err == nil {
		return p, 0, nil
	}
	for i, k := range keys[1:] {
		if p, ok := s.bracelets[k.String()]; ok {
			metrics.CacheLookupsTotal.WithLabelValues("bracelet", "fallback").Inc()
			return p, i + 1, nil
		}
	}
	return nil, -1, ErrNotFound
}
