package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/market"
)

func TestPresets(t *testing.T) {
	t.Parallel()

	presets := Presets([]model.Grade{model.GradeAncient, model.GradeRelic})
	require.Len(t, presets, 32)

	keys := make(map[string]bool)
	extra := make(map[model.Grade][]int)
	for _, p := range presets {
		assert.False(t, keys[p.Key], "duplicate preset %s", p.Key)
		keys[p.Key] = true
		assert.Equal(t, 1, p.Query.Page)
		assert.Equal(t, market.SortBuyPrice, p.Query.Sort)

		if p.Query.Category != model.CategoryBracelet {
			require.NotNil(t, p.Query.UpgradeLevel)
			require.NotNil(t, p.Query.Quality)
			continue
		}
		require.Len(t, p.Query.Filters, 2)
		assert.Equal(t, market.FilterFixedCount, p.Query.Filters[0].SecondOption)
		extra[p.Query.Grade] = append(extra[p.Query.Grade], p.Query.Filters[1].MinValue)
	}
	assert.Equal(t, []int{1, 2, 1, 2}, extra[model.GradeRelic])
	assert.Equal(t, []int{2, 3, 2, 3}, extra[model.GradeAncient])
	assert.True(t, keys["relic:necklace:lv3:q60"])
	assert.True(t, keys["ancient:bracelet:fixed2:extra3"])
}

func TestPageCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total int
		want  int
	}{
		{total: 0, want: 0},
		{total: 1, want: 1},
		{total: 10, want: 1},
		{total: 11, want: 2},
		{total: 9995, want: 1000},
		{total: 250000, want: MaxPages},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageCount(tt.total), "total %d", tt.total)
	}
}
