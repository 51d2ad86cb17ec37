package model

import "sort"

// OptionName is the abbreviated accessory option name used throughout the
// pattern tables. Full names from the market are normalized at decode time.
type OptionName string

const (
	OptAttackPercent       OptionName = "공퍼"
	OptFlatAttack          OptionName = "깡공"
	OptWeaponAttackPercent OptionName = "무공퍼"
	OptFlatWeaponAttack    OptionName = "깡무공"
	OptCritRate            OptionName = "치적"
	OptCritDamage          OptionName = "치피"
	OptAdditionalDamage    OptionName = "추피"
	OptDamageToEnemy       OptionName = "적주피"
	OptIdentityGain        OptionName = "아덴게이지"
	OptBrandPower          OptionName = "낙인력"
	OptPartyHeal           OptionName = "아군회복"
	OptPartyShield         OptionName = "아군보호막"
	OptAllyAttackBuff      OptionName = "아공강"
	OptAllyDamageBuff      OptionName = "아피강"
	OptMaxMP               OptionName = "최마"
	OptMaxHP               OptionName = "최생"
	OptStatusDuration      OptionName = "상태이상공격지속시간"
	OptCombatRecovery      OptionName = "전투중생회"
)

type Bucket int

const (
	BucketNone Bucket = iota
	BucketLow
	BucketMid
	BucketHigh
)

func (b Bucket) String() string {
	switch b {
	case BucketLow:
		return "LOW"
	case BucketMid:
		return "MID"
	case BucketHigh:
		return "HIGH"
	default:
		return "NONE"
	}
}

type OptionValue struct {
	Name    OptionName `json:"name"`
	Raw     float64    `json:"raw"`
	Percent bool       `json:"percent,omitempty"`
	Bucket  Bucket     `json:"bucket"`
}

// NewOptionValue builds an option with its bucket resolved from the scale table.
func NewOptionValue(name OptionName, raw float64, percent bool) OptionValue {
	return OptionValue{Name: name, Raw: raw, Percent: percent, Bucket: BucketFor(name, raw)}
}

// OptionScales maps each option to its LOW, MID and HIGH raw values.
var OptionScales = map[OptionName][3]float64{
	OptAttackPercent:       {0.4, 0.95, 1.55},
	OptFlatAttack:          {80, 195, 390},
	OptWeaponAttackPercent: {0.8, 1.8, 3.0},
	OptFlatWeaponAttack:    {195, 480, 960},
	OptCritRate:            {0.4, 0.95, 1.55},
	OptCritDamage:          {1.1, 2.4, 4.0},
	OptAdditionalDamage:    {0.7, 1.6, 2.6},
	OptDamageToEnemy:       {0.55, 1.2, 2.0},
	OptIdentityGain:        {1.6, 3.6, 6.0},
	OptBrandPower:          {2.15, 4.8, 8.0},
	OptPartyHeal:           {0.95, 2.1, 3.5},
	OptPartyShield:         {0.95, 2.1, 3.5},
	OptAllyAttackBuff:      {1.35, 3.0, 5.0},
	OptAllyDamageBuff:      {2.0, 4.5, 7.5},
	OptMaxMP:               {6, 15, 30},
	OptMaxHP:               {1300, 3250, 6500},
	OptStatusDuration:      {0.2, 0.5, 1.0},
	OptCombatRecovery:      {10, 25, 50},
}

// BucketFor returns the highest bucket whose raw value does not exceed raw.
func BucketFor(name OptionName, raw float64) Bucket {
	scale, ok := OptionScales[name]
	if !ok {
		return BucketNone
	}
	const eps = 1e-9
	bucket := BucketNone
	for i, v := range scale {
		if raw+eps >= v {
			bucket = Bucket(i + 1)
		}
	}
	return bucket
}

type Role string

const (
	RoleDealer  Role = "dealer"
	RoleSupport Role = "support"
)

// Roles lists every valuation profile in a fixed order.
var Roles = []Role{RoleDealer, RoleSupport}

// ExclusiveOptions defines which options split accessories into pattern keys.
var ExclusiveOptions = map[Category]map[Role][]OptionName{
	CategoryNecklace: {
		RoleDealer:  {OptAdditionalDamage, OptDamageToEnemy},
		RoleSupport: {OptIdentityGain, OptBrandPower},
	},
	CategoryEarring: {
		RoleDealer:  {OptAttackPercent, OptWeaponAttackPercent},
		RoleSupport: {OptWeaponAttackPercent},
	},
	CategoryRing: {
		RoleDealer:  {OptCritRate, OptCritDamage},
		RoleSupport: {OptAllyAttackBuff, OptAllyDamageBuff},
	},
}

// RoleCommonOptions are the bonus options that add marginal value per role.
var RoleCommonOptions = map[Role][]OptionName{
	RoleDealer:  {OptFlatAttack, OptFlatWeaponAttack},
	RoleSupport: {OptFlatWeaponAttack, OptMaxHP, OptMaxMP, OptPartyHeal, OptPartyShield},
}

// CommonOptionTiers returns the ascending tier values of a common option.
func CommonOptionTiers(name OptionName) []float64 {
	scale, ok := OptionScales[name]
	if !ok {
		return nil
	}
	return []float64{scale[0], scale[1], scale[2]}
}

// QualityThresholds are the accessory quality bucket floors, ascending.
var QualityThresholds = []int{60, 70, 80, 90}

// MinQuality is the lowest quality considered for pricing and valuation.
const MinQuality = 67

// QualityCut maps a quality to the bucket floor used for baseline lookups.
func QualityCut(quality int) int {
	if quality >= 90 {
		return 90
	}
	return (quality / 10) * 10
}

// ExclusiveOption is one (name, bucket) pair of a pattern key.
type ExclusiveOption struct {
	Name   OptionName `json:"name"`
	Bucket Bucket     `json:"bucket"`
}

// SortExclusive orders exclusive options by name so keys are canonical.
func SortExclusive(opts []ExclusiveOption) {
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Name != opts[j].Name {
			return opts[i].Name < opts[j].Name
		}
		return opts[i].Bucket < opts[j].Bucket
	})
}
