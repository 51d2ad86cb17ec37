package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternKeyString(t *testing.T) {
	key := PatternKey{
		Grade:    GradeAncient,
		Category: CategoryNecklace,
		Level:    3,
		Exclusive: []ExclusiveOption{
			{Name: OptDamageToEnemy, Bucket: BucketHigh},
			{Name: OptAdditionalDamage, Bucket: BucketLow},
		},
		Role: RoleDealer,
	}
	assert.Equal(t, "ancient:necklace:3:적주피=3,추피=1:dealer", key.String())
	assert.Equal(t, OptDamageToEnemy, key.Exclusive[0].Name, "String must not reorder the key")

	key.Exclusive = nil
	assert.Equal(t, "base", key.ExclusiveString())
}

func TestAccessoryPatternBaseline(t *testing.T) {
	p := &AccessoryPattern{QualityPrices: map[int]int64{70: 1000, 90: 5000}}

	_, ok := p.Baseline(67)
	assert.False(t, ok, "no bucket at or below 60")

	price, ok := p.Baseline(85)
	require.True(t, ok)
	assert.Equal(t, int64(1000), price)

	price, ok = p.Baseline(97)
	require.True(t, ok)
	assert.Equal(t, int64(5000), price)
}

func TestAccessoryPatternCommonBonus(t *testing.T) {
	p := &AccessoryPattern{CommonOptions: map[OptionName][]TierPrice{
		OptFlatAttack: {{Tier: 80, Price: 300}, {Tier: 195, Price: 900}},
	}}
	assert.Equal(t, int64(0), p.CommonBonus(OptFlatAttack, 79))
	assert.Equal(t, int64(300), p.CommonBonus(OptFlatAttack, 80))
	assert.Equal(t, int64(900), p.CommonBonus(OptFlatAttack, 390))
	assert.Equal(t, int64(0), p.CommonBonus(OptMaxHP, 6500))
}

func TestBraceletThresholds(t *testing.T) {
	th, ok := BraceletThresholds("치명", GradeRelic)
	require.True(t, ok)
	assert.Equal(t, []float64{40, 50, 60, 70, 80, 90}, th)

	th, ok = BraceletThresholds("힘", GradeAncient)
	require.True(t, ok)
	assert.Equal(t, []float64{9600, 11200, 12800, 14400}, th)

	_, ok = BraceletThresholds(SpeedEffect, GradeRelic)
	assert.False(t, ok)

	assert.Equal(t, 1600.0, SimilarTolerance("민첩"))
	assert.Equal(t, 10.0, SimilarTolerance("신속"))
}

func TestBraceletKeyValues(t *testing.T) {
	key := BraceletKey{Grade: GradeRelic, Type: BraceletCombatBase, Signature: "신속+힘", Values: JoinValues([]float64{70, 9600}), ExtraSlots: 1}
	assert.Equal(t, "relic:combat1_base:신속+힘:70+9600:부여1", key.String())
	assert.Equal(t, []float64{70, 9600}, key.ValueList())

	key.Values = "70+x"
	assert.Nil(t, key.ValueList())
}
