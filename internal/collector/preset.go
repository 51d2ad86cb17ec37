package collector

import (
	"fmt"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/market"
)

// MaxPages is the deepest page the market serves for one search.
const MaxPages = 1000

const presetQuality = 60

var (
	accessoryCategories = []model.Category{model.CategoryNecklace, model.CategoryEarring, model.CategoryRing}
	upgradeLevels       = []int{0, 1, 2, 3}
)

// Preset is one search the collector pages through completely.
type Preset struct {
	Key   string
	Query market.SearchQuery
}

// Presets lists every search of one collection cycle for the given grades:
// accessories per category and upgrade level, bracelets per fixed and
// extra slot count. Ancient bracelets carry one more extra slot.
func Presets(grades []model.Grade) []Preset {
	var out []Preset
	for _, grade := range grades {
		for _, category := range accessoryCategories {
			for _, level := range upgradeLevels {
				level := level
				quality := presetQuality
				out = append(out, Preset{
					Key: fmt.Sprintf("%s:%s:lv%d:q%d", grade, category, level, quality),
					Query: market.SearchQuery{
						Category:     category,
						Grade:        grade,
						UpgradeLevel: &level,
						Quality:      &quality,
						Sort:         market.SortBuyPrice,
						Direction:    market.DirectionAsc,
						Page:         1,
					},
				})
			}
		}

		bonus := 0
		if grade == model.GradeAncient {
			bonus = 1
		}
		for fixed := 1; fixed <= 2; fixed++ {
			for extra := 1; extra <= 2; extra++ {
				slots := extra + bonus
				out = append(out, Preset{
					Key: fmt.Sprintf("%s:%s:fixed%d:extra%d", grade, model.CategoryBracelet, fixed, slots),
					Query: market.SearchQuery{
						Category:  model.CategoryBracelet,
						Grade:     grade,
						Sort:      market.SortBuyPrice,
						Direction: market.DirectionAsc,
						Page:      1,
						Filters: []market.OptionFilter{
							{FirstOption: market.FilterBraceletSlots, SecondOption: market.FilterFixedCount, MinValue: fixed, MaxValue: fixed},
							{FirstOption: market.FilterBraceletSlots, SecondOption: market.FilterExtraCount, MinValue: slots, MaxValue: slots},
						},
					},
				})
			}
		}
	}
	return out
}

// PageCount is the number of pages to fetch for a search reporting total rows.
func PageCount(total int) int {
	if total <= 0 {
		return 0
	}
	pages := (total + market.PageSize - 1) / market.PageSize
	if pages > MaxPages {
		return MaxPages
	}
	return pages
}
