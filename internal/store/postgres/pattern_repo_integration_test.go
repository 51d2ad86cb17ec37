//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/store/postgres"
)

func samplePatternSet(asOf time.Time) *model.PatternSet {
	return &model.PatternSet{
		Generation: model.Generation{ID: uuid.New(), AsOf: asOf},
		Accessories: []model.AccessoryPattern{{
			Key: model.PatternKey{
				Grade:     model.GradeRelic,
				Category:  model.CategoryNecklace,
				Level:     3,
				Exclusive: []model.ExclusiveOption{{Name: model.OptAdditionalDamage, Bucket: model.BucketMid}},
				Role:      model.RoleDealer,
			},
			QualityPrices: map[int]int64{70: 1000, 90: 3000},
			CommonOptions: map[model.OptionName][]model.TierPrice{
				model.OptFlatAttack: {{Tier: 80, Price: 300}},
			},
			SampleCount: 12,
			Success:     &model.SuccessStats{Rate: 0.75, Sold: 3, Expired: 1},
		}},
		Bracelets: []model.BraceletPattern{{
			Key: model.BraceletKey{
				Grade:      model.GradeRelic,
				Type:       model.BraceletCombatPair,
				Signature:  "치명+특화",
				Values:     "70+90",
				ExtraSlots: 1,
			},
			Price:       5000,
			SampleCount: 4,
		}},
	}
}

func TestPatternRepo_WriteAndLoad(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewPatternRepo(db)
	ctx := context.Background()

	active, err := repo.ActiveGeneration(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	set := samplePatternSet(base)
	activated, err := repo.WriteGeneration(ctx, set)
	require.NoError(t, err)
	assert.True(t, activated)

	loaded, err := repo.LoadGeneration(ctx, set.Generation.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.Generation.IsActive)
	require.Len(t, loaded.Accessories, 1)
	assert.Equal(t, set.Accessories[0].Key.String(), loaded.Accessories[0].Key.String())
	assert.Equal(t, set.Accessories[0].QualityPrices, loaded.Accessories[0].QualityPrices)
	assert.Equal(t, set.Accessories[0].CommonOptions, loaded.Accessories[0].CommonOptions)
	assert.Equal(t, set.Accessories[0].Success, loaded.Accessories[0].Success)
	require.Len(t, loaded.Bracelets, 1)
	assert.Equal(t, set.Bracelets[0].Key, loaded.Bracelets[0].Key)
	assert.Nil(t, loaded.Bracelets[0].Success)

	missing, err := repo.LoadGeneration(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPatternRepo_OlderGenerationIsNotActivated(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewPatternRepo(db)
	ctx := context.Background()

	newer := samplePatternSet(base)
	_, err := repo.WriteGeneration(ctx, newer)
	require.NoError(t, err)

	older := samplePatternSet(base.Add(-time.Hour))
	activated, err := repo.WriteGeneration(ctx, older)
	require.NoError(t, err)
	assert.False(t, activated)

	active, err := repo.ActiveGeneration(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, newer.Generation.ID, active.ID)

	latest, err := repo.LatestGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.Generation.ID, latest.ID)

	gens, err := repo.ListGenerations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, gens, 2)
	assert.Equal(t, newer.Generation.ID, gens[0].ID)
}

func TestPatternRepo_CopyGeneration(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewPatternRepo(db)
	ctx := context.Background()

	src := samplePatternSet(base)
	_, err := repo.WriteGeneration(ctx, src)
	require.NoError(t, err)

	next := model.Generation{ID: uuid.New(), AsOf: base.Add(15 * time.Minute)}
	activated, err := repo.CopyGeneration(ctx, src.Generation.ID, next)
	require.NoError(t, err)
	assert.True(t, activated)

	active, err := repo.ActiveGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)

	copied, err := repo.LoadGeneration(ctx, next.ID)
	require.NoError(t, err)
	require.NotNil(t, copied)
	assert.Len(t, copied.Accessories, 1)
	assert.Len(t, copied.Bracelets, 1)

	_, err = repo.CopyGeneration(ctx, uuid.New(), model.Generation{ID: uuid.New(), AsOf: base.Add(time.Hour)})
	require.Error(t, err)
}
