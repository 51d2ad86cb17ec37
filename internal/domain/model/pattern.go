package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PatternKey identifies one accessory price model bucket.
type PatternKey struct {
	Grade     Grade
	Category  Category
	Level     int
	Exclusive []ExclusiveOption
	Role      Role
}

// ExclusiveString renders the sorted exclusive options, or "base" when empty.
func (k PatternKey) ExclusiveString() string {
	if len(k.Exclusive) == 0 {
		return "base"
	}
	opts := make([]ExclusiveOption, len(k.Exclusive))
	copy(opts, k.Exclusive)
	SortExclusive(opts)
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = fmt.Sprintf("%s=%d", o.Name, o.Bucket)
	}
	return strings.Join(parts, ",")
}

func (k PatternKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", k.Grade, k.Category, k.Level, k.ExclusiveString(), k.Role)
}

type SuccessStats struct {
	Rate    float64 `json:"rate"`
	Sold    int     `json:"sold"`
	Expired int     `json:"expired"`
}

// TierPrice is the marginal price of a common option at one tier.
type TierPrice struct {
	Tier  float64 `json:"tier"`
	Price int64   `json:"price"`
}

type AccessoryPattern struct {
	Key           PatternKey
	QualityPrices map[int]int64
	CommonOptions map[OptionName][]TierPrice
	SampleCount   int
	Success       *SuccessStats
}

// Baseline returns the price of the highest quality bucket at or below the
// quality cut of the given quality.
func (p *AccessoryPattern) Baseline(quality int) (int64, bool) {
	cut := QualityCut(quality)
	best := -1
	for threshold := range p.QualityPrices {
		if threshold <= cut && threshold > best {
			best = threshold
		}
	}
	if best < 0 {
		return 0, false
	}
	return p.QualityPrices[best], true
}

// CommonBonus returns the marginal price of the highest tier at or below value.
func (p *AccessoryPattern) CommonBonus(name OptionName, value float64) int64 {
	var bonus int64
	best := -1.0
	for _, tp := range p.CommonOptions[name] {
		if tp.Tier <= value+1e-9 && tp.Tier > best {
			best = tp.Tier
			bonus = tp.Price
		}
	}
	return bonus
}

type BraceletPatternType string

const (
	BraceletCombatPair   BraceletPatternType = "combat2"
	BraceletCombatBase   BraceletPatternType = "combat1_base"
	BraceletCombatSpeed  BraceletPatternType = "combat1_speed"
	BraceletCombatMisc   BraceletPatternType = "combat1_misc"
	BraceletBaseSpeed    BraceletPatternType = "base_speed"
	BraceletCombatSingle BraceletPatternType = "combat1"
)

// Bracelet stat names as the market reports them.
var (
	CombatStats = []string{"특화", "치명", "신속"}
	BaseStats   = []string{"힘", "민첩", "지능"}
)

const SpeedEffect = "공격 및 이동 속도 증가"

// BraceletThresholds returns the ascending rounding thresholds for a stat
// class at the given grade. ok is false for stats that are not thresholded.
func BraceletThresholds(stat string, grade Grade) ([]float64, bool) {
	var base []float64
	var bonus float64
	switch {
	case containsString(CombatStats, stat):
		base, bonus = []float64{40, 50, 60, 70, 80, 90}, 20
	case containsString(BaseStats, stat):
		base, bonus = []float64{6400, 8000, 9600, 11200}, 3200
	default:
		return nil, false
	}
	th := make([]float64, len(base))
	for i, v := range base {
		th[i] = v
		if grade == GradeAncient {
			th[i] += bonus
		}
	}
	return th, true
}

// SimilarTolerance is the largest difference at which two rounded values of
// the stat still count as the same bracelet for fallback matching.
func SimilarTolerance(stat string) float64 {
	if IsBaseStat(stat) {
		return 1600
	}
	return 10
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IsCombatStat reports whether the stat is a combat stat.
func IsCombatStat(name string) bool { return containsString(CombatStats, name) }

// IsBaseStat reports whether the stat is a base stat.
func IsBaseStat(name string) bool { return containsString(BaseStats, name) }

// BraceletKey identifies one bracelet price model bucket. Signature and Values
// are "+" joined in signature order.
type BraceletKey struct {
	Grade      Grade
	Type       BraceletPatternType
	Signature  string
	Values     string
	ExtraSlots int
}

func (k BraceletKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:부여%d", k.Grade, k.Type, k.Signature, k.Values, k.ExtraSlots)
}

// ValueList parses Values back into numbers.
func (k BraceletKey) ValueList() []float64 {
	if k.Values == "" {
		return nil
	}
	parts := strings.Split(k.Values, "+")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// JoinValues renders numbers in the canonical Values form.
func JoinValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, "+")
}

type BraceletPattern struct {
	Key         BraceletKey
	Price       int64
	SampleCount int
	Success     *SuccessStats
}

type Generation struct {
	ID        uuid.UUID
	AsOf      time.Time
	IsActive  bool
	CreatedAt time.Time
}

// PatternSet is every pattern row of one generation.
type PatternSet struct {
	Generation  Generation
	Accessories []AccessoryPattern
	Bracelets   []BraceletPattern
}

// SortRows orders rows by key so writes and summaries are deterministic.
func (s *PatternSet) SortRows() {
	sort.Slice(s.Accessories, func(i, j int) bool {
		return s.Accessories[i].Key.String() < s.Accessories[j].Key.String()
	})
	sort.Slice(s.Bracelets, func(i, j int) bool {
		return s.Bracelets[i].Key.String() < s.Bracelets[j].Key.String()
	})
}
