package valuation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/patterncache"
)

var expiry = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func necklace(price int64, quality int, opts ...model.OptionValue) model.Listing {
	return model.Listing{
		ID:       uuid.New(),
		Name:     "necklace",
		Category: model.CategoryNecklace,
		Grade:    model.GradeRelic,
		Price:    price,
		Expiry:   expiry,
		Attrs:    &model.AccessoryAttrs{Level: 3, Quality: quality, Options: opts},
	}
}

func speedBracelet(price int64, value float64) model.Listing {
	return model.Listing{
		ID:       uuid.New(),
		Name:     "bracelet",
		Category: model.CategoryBracelet,
		Grade:    model.GradeRelic,
		Price:    price,
		Expiry:   expiry,
		Attrs: &model.BraceletAttrs{
			FixedCount: 1,
			Combat:     []model.Stat{{Name: "신속", Value: value}},
		},
	}
}

func opt(name model.OptionName, raw float64) model.OptionValue {
	return model.NewOptionValue(name, raw, false)
}

func testSnapshot() *patterncache.Snapshot {
	return patterncache.NewSnapshot(testPatternSet())
}

func testPatternSet() *model.PatternSet {
	dealer := model.PatternKey{
		Grade:     model.GradeRelic,
		Category:  model.CategoryNecklace,
		Level:     3,
		Exclusive: []model.ExclusiveOption{{Name: model.OptAdditionalDamage, Bucket: model.BucketMid}},
		Role:      model.RoleDealer,
	}
	support := model.PatternKey{
		Grade:    model.GradeRelic,
		Category: model.CategoryNecklace,
		Level:    3,
		Role:     model.RoleSupport,
	}
	return &model.PatternSet{
		Generation: model.Generation{ID: uuid.New(), IsActive: true},
		Accessories: []model.AccessoryPattern{
			{
				Key:           dealer,
				QualityPrices: map[int]int64{60: 50000, 70: 60000, 80: 80000, 90: 120000},
				CommonOptions: map[model.OptionName][]model.TierPrice{
					model.OptFlatAttack: {{Tier: 80, Price: 5000}, {Tier: 195, Price: 12000}},
				},
				SampleCount: 20,
				Success:     &model.SuccessStats{Rate: 0.6, Sold: 6, Expired: 4},
			},
			{
				Key:           support,
				QualityPrices: map[int]int64{60: 9000, 80: 10000},
				SampleCount:   8,
			},
		},
		Bracelets: []model.BraceletPattern{{
			Key: model.BraceletKey{
				Grade:     model.GradeRelic,
				Type:      model.BraceletCombatSingle,
				Signature: "신속",
				Values:    "60",
			},
			Price:       50000,
			SampleCount: 4,
		}},
	}
}

func TestEvaluatorRatio(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(DefaultConfig())
	assert.InDelta(t, 0.625, e.Ratio(266667), 1e-3)
	assert.InDelta(t, 0.5, e.Ratio(0), 0.01)
	assert.InDelta(t, 0.75, e.Ratio(1_000_000), 0.01)
	assert.Less(t, e.Ratio(100000), e.Ratio(300000))
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(DefaultConfig())
	snap := testSnapshot()

	dealerOpts := []model.OptionValue{opt(model.OptAdditionalDamage, 1.6), opt(model.OptFlatAttack, 200)}

	tests := []struct {
		name    string
		listing model.Listing
		ok      bool
		fair    int64
		role    model.Role
		notable bool
	}{
		{
			name:    "dealer baseline plus common bonus",
			listing: necklace(40000, 85, dealerOpts...),
			ok:      true,
			fair:    92000,
			role:    model.RoleDealer,
			notable: true,
		},
		{
			name:    "priced above threshold",
			listing: necklace(60000, 85, dealerOpts...),
			ok:      true,
			fair:    92000,
			role:    model.RoleDealer,
		},
		{
			name:    "support is the only match",
			listing: necklace(1000, 92),
			ok:      true,
			fair:    10000,
			role:    model.RoleSupport,
		},
		{
			name:    "below minimum quality",
			listing: necklace(100, 60, dealerOpts...),
		},
		{
			name:    "no buy price",
			listing: necklace(0, 90, dealerOpts...),
		},
		{
			name:    "bracelet exact key",
			listing: speedBracelet(20000, 64),
			ok:      true,
			fair:    50000,
			notable: true,
		},
		{
			name:    "bracelet falls back to coarser key",
			listing: speedBracelet(20000, 95),
			ok:      true,
			fair:    50000,
			notable: true,
		},
		{
			name:    "bracelet below every threshold",
			listing: speedBracelet(20000, 35),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, ok := e.Evaluate(snap, tt.listing)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.fair, ev.FairPrice)
			assert.Equal(t, tt.role, ev.Role)
			assert.Equal(t, tt.notable, ev.Notable)
			assert.Equal(t, tt.fair-tt.listing.Price, ev.Profit)
		})
	}
}

func TestEvaluateMinFairPrice(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(DefaultConfig())
	ev, ok := e.Evaluate(testSnapshot(), necklace(1, 92))
	require.True(t, ok)
	assert.Equal(t, int64(10000), ev.FairPrice)
	assert.False(t, ev.Notable, "fair price under the minimum is never notable")
}

func TestEvaluateEmptySnapshot(t *testing.T) {
	t.Parallel()

	snap := patterncache.NewSnapshot(&model.PatternSet{})
	_, ok := NewEvaluator(DefaultConfig()).Evaluate(snap, necklace(1000, 90))
	assert.False(t, ok)
}
