package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableAcrossOptionOrder(t *testing.T) {
	expiry := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	a := Listing{
		Name: "목걸이", Category: CategoryNecklace, Grade: GradeRelic, Price: 1000, Expiry: expiry,
		Attrs: &AccessoryAttrs{Level: 2, Quality: 80, Options: []OptionValue{
			NewOptionValue(OptAdditionalDamage, 1.6, true),
			NewOptionValue(OptFlatAttack, 195, false),
		}},
	}
	b := a
	b.Expiry = expiry.UTC()
	b.Attrs = &AccessoryAttrs{Level: 2, Quality: 80, Options: []OptionValue{
		NewOptionValue(OptFlatAttack, 195, false),
		NewOptionValue(OptAdditionalDamage, 1.6, true),
	}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	c := a
	c.Price = 1001
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestFingerprintSeparatesBraceletStats(t *testing.T) {
	base := Listing{Name: "팔찌", Category: CategoryBracelet, Grade: GradeAncient, Price: 5000}
	crit := base
	crit.Attrs = &BraceletAttrs{FixedCount: 2, ExtraSlots: 2, Combat: []Stat{{Name: "치명", Value: 90}}}
	spec := base
	spec.Attrs = &BraceletAttrs{FixedCount: 2, ExtraSlots: 2, Combat: []Stat{{Name: "특화", Value: 90}}}
	assert.NotEqual(t, Fingerprint(crit), Fingerprint(spec))
}

func TestListingAttrAccessors(t *testing.T) {
	acc := Listing{Category: CategoryRing, Attrs: &AccessoryAttrs{Quality: 77, Options: []OptionValue{NewOptionValue(OptCritRate, 0.95, true)}}}
	a, ok := acc.Accessory()
	assert.True(t, ok)
	assert.Equal(t, 77, acc.Quality())
	opt, ok := a.Option(OptCritRate)
	assert.True(t, ok)
	assert.Equal(t, BucketMid, opt.Bucket)
	_, ok = acc.Bracelet()
	assert.False(t, ok)

	br := Listing{Category: CategoryBracelet, Attrs: &BraceletAttrs{Special: []Stat{{Name: SpeedEffect, Value: 4}}}}
	b, ok := br.Bracelet()
	assert.True(t, ok)
	assert.True(t, b.HasSpecial(SpeedEffect))
	assert.Equal(t, 0, br.Quality())
	assert.False(t, br.Category.IsAccessory())
	assert.True(t, acc.Category.IsAccessory())
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		name OptionName
		raw  float64
		want Bucket
	}{
		{OptAdditionalDamage, 0.5, BucketNone},
		{OptAdditionalDamage, 0.7, BucketLow},
		{OptAdditionalDamage, 1.6, BucketMid},
		{OptAdditionalDamage, 2.59999999999, BucketHigh},
		{OptFlatAttack, 389, BucketMid},
		{OptFlatAttack, 390, BucketHigh},
		{OptionName("알 수 없음"), 100, BucketNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketFor(tt.name, tt.raw), "%s %v", tt.name, tt.raw)
	}
	assert.Equal(t, "MID", BucketMid.String())
	assert.Equal(t, "NONE", BucketNone.String())
}

func TestQualityCut(t *testing.T) {
	for quality, want := range map[int]int{67: 60, 70: 70, 79: 70, 89: 80, 90: 90, 100: 90} {
		assert.Equal(t, want, QualityCut(quality), "quality %d", quality)
	}
}
