package market

import "github.com/kimjw0623/find-angel-sub000/internal/domain/model"

// PageSize is the fixed number of rows per search page.
const PageSize = 10

type SortField string

const (
	SortExpireDate   SortField = "EXPIREDATE"
	SortBuyPrice     SortField = "BUY_PRICE"
	SortBidStartCost SortField = "BIDSTART_PRICE"
)

type Direction string

const (
	DirectionAsc  Direction = "ASC"
	DirectionDesc Direction = "DESC"
)

// OptionFilter narrows a search by an option code range.
type OptionFilter struct {
	FirstOption  int
	SecondOption int
	MinValue     int
	MaxValue     int
}

// Bracelet slot filter codes.
const (
	FilterBraceletSlots = 4
	FilterFixedCount    = 1
	FilterExtraCount    = 2
)

// SearchQuery is one page request. A zero Category searches every accessory
// category at once.
type SearchQuery struct {
	Category     model.Category
	Grade        model.Grade
	UpgradeLevel *int
	Quality      *int
	Sort         SortField
	Direction    Direction
	Page         int
	Filters      []OptionFilter
}

// WithPage returns a copy of q for another page.
func (q SearchQuery) WithPage(page int) SearchQuery {
	q.Page = page
	return q
}

var categoryCodes = map[model.Category]int{
	model.CategoryNecklace: 200010,
	model.CategoryEarring:  200020,
	model.CategoryRing:     200030,
	model.CategoryBracelet: 200040,
}

const allAccessoriesCode = 200000

var gradeNames = map[model.Grade]string{
	model.GradeAncient: "고대",
	model.GradeRelic:   "유물",
}

type requestOption struct {
	FirstOption  *int `json:"FirstOption"`
	SecondOption *int `json:"SecondOption"`
	MinValue     *int `json:"MinValue"`
	MaxValue     *int `json:"MaxValue"`
}

type searchRequest struct {
	ItemLevelMin        int             `json:"ItemLevelMin"`
	ItemLevelMax        int             `json:"ItemLevelMax"`
	ItemGradeQuality    *int            `json:"ItemGradeQuality"`
	ItemUpgradeLevel    *int            `json:"ItemUpgradeLevel"`
	ItemTradeAllowCount *int            `json:"ItemTradeAllowCount"`
	SkillOptions        []requestOption `json:"SkillOptions"`
	EtcOptions          []requestOption `json:"EtcOptions"`
	Sort                string          `json:"Sort"`
	CategoryCode        int             `json:"CategoryCode"`
	CharacterClass      string          `json:"CharacterClass"`
	ItemTier            int             `json:"ItemTier"`
	ItemGrade           string          `json:"ItemGrade"`
	ItemName            string          `json:"ItemName"`
	PageNo              int             `json:"PageNo"`
	SortCondition       string          `json:"SortCondition"`
}

func (q SearchQuery) request() searchRequest {
	code := allAccessoriesCode
	if c, ok := categoryCodes[q.Category]; ok {
		code = c
	}
	sortField := q.Sort
	if sortField == "" {
		sortField = SortExpireDate
	}
	dir := q.Direction
	if dir == "" {
		dir = DirectionDesc
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	req := searchRequest{
		ItemLevelMax:     1800,
		ItemGradeQuality: q.Quality,
		ItemUpgradeLevel: q.UpgradeLevel,
		SkillOptions:     []requestOption{{}},
		EtcOptions:       []requestOption{},
		Sort:             string(sortField),
		CategoryCode:     code,
		ItemTier:         4,
		ItemGrade:        gradeNames[q.Grade],
		PageNo:           page,
		SortCondition:    string(dir),
	}
	for _, f := range q.Filters {
		f := f
		req.EtcOptions = append(req.EtcOptions, requestOption{
			FirstOption:  &f.FirstOption,
			SecondOption: &f.SecondOption,
			MinValue:     &f.MinValue,
			MaxValue:     &f.MaxValue,
		})
	}
	return req
}
