package market

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
)

// Page is one decoded search page.
type Page struct {
	PageNo     int
	TotalCount int
	Listings   []model.Listing
	// Dropped counts rows that could not be decoded.
	Dropped int
}

// Empty reports whether the page carried no listings.
func (p *Page) Empty() bool {
	return p == nil || len(p.Listings) == 0
}

type searchResponse struct {
	PageNo     int       `json:"PageNo"`
	PageSize   int       `json:"PageSize"`
	TotalCount int       `json:"TotalCount"`
	Items      []apiItem `json:"Items"`
}

type apiItem struct {
	Name         string      `json:"Name"`
	Grade        string      `json:"Grade"`
	Tier         int         `json:"Tier"`
	GradeQuality *int        `json:"GradeQuality"`
	AuctionInfo  auctionInfo `json:"AuctionInfo"`
	Options      []apiOption `json:"Options"`
}

type auctionInfo struct {
	BuyPrice        *int64 `json:"BuyPrice"`
	BidStartPrice   int64  `json:"BidStartPrice"`
	EndDate         string `json:"EndDate"`
	TradeAllowCount int    `json:"TradeAllowCount"`
	UpgradeLevel    *int   `json:"UpgradeLevel"`
}

type apiOption struct {
	Type              string  `json:"Type"`
	OptionName        string  `json:"OptionName"`
	Value             float64 `json:"Value"`
	IsValuePercentage bool    `json:"IsValuePercentage"`
}

const (
	optionTypeArkPassive   = "ARK_PASSIVE"
	optionTypeRandomSlot   = "BRACELET_RANDOM_SLOT"
	optionTypeStat         = "STAT"
	optionTypeUpgrade      = "ACCESSORY_UPGRADE"
	endDateLayout          = "2006-01-02T15:04:05"
	enlightenmentOption    = "깨달음"
	leapOption             = "도약"
	attackOptionName       = "공격력"
	weaponAttackOptionName = "무기 공격력"
)

var fullOptionNames = map[string]model.OptionName{
	"추가 피해":                                   model.OptAdditionalDamage,
	"적에게 주는 피해 증가":                     model.OptDamageToEnemy,
	"세레나데, 신성, 조화 게이지 획득량 증가": model.OptIdentityGain,
	"낙인력":                                       model.OptBrandPower,
	"파티원 회복 효과":                           model.OptPartyHeal,
	"파티원 보호막 효과":                         model.OptPartyShield,
	"치명타 적중률":                               model.OptCritRate,
	"치명타 피해":                                 model.OptCritDamage,
	"아군 공격력 강화 효과":                     model.OptAllyAttackBuff,
	"아군 피해량 강화 효과":                     model.OptAllyDamageBuff,
	"최대 생명력":                                 model.OptMaxHP,
	"최대 마나":                                   model.OptMaxMP,
	"상태이상 공격 지속시간":                     model.OptStatusDuration,
	"전투 중 생명력 회복량":                     model.OptCombatRecovery,
}

var gradeByName = map[string]model.Grade{
	"고대": model.GradeAncient,
	"유물": model.GradeRelic,
}

var categoryByNameToken = []struct {
	token    string
	category model.Category
}{
	{"목걸이", model.CategoryNecklace},
	{"귀걸이", model.CategoryEarring},
	{"반지", model.CategoryRing},
	{"팔찌", model.CategoryBracelet},
}

// Decode parses a search response body. Rows that cannot be mapped to a
// listing are skipped and counted in Page.Dropped; only an undecodable
// envelope is an error.
func Decode(body []byte, loc *time.Location) (*Page, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	page := &Page{
		PageNo:     resp.PageNo,
		TotalCount: resp.TotalCount,
		Listings:   make([]model.Listing, 0, len(resp.Items)),
	}
	for _, item := range resp.Items {
		listing, err := decodeItem(item, loc)
		if err != nil {
			page.Dropped++
			continue
		}
		page.Listings = append(page.Listings, listing)
	}
	return page, nil
}

func decodeItem(item apiItem, loc *time.Location) (model.Listing, error) {
	grade, ok := gradeByName[item.Grade]
	if !ok {
		return model.Listing{}, fmt.Errorf("unknown grade %q", item.Grade)
	}
	category, ok := categoryOf(item.Name)
	if !ok {
		return model.Listing{}, fmt.Errorf("unknown category for %q", item.Name)
	}
	expiry, err := parseEndDate(item.AuctionInfo.EndDate, loc)
	if err != nil {
		return model.Listing{}, err
	}

	listing := model.Listing{
		Name:       item.Name,
		Category:   category,
		Grade:      grade,
		TradeLimit: item.AuctionInfo.TradeAllowCount,
		Expiry:     expiry,
	}
	if item.AuctionInfo.BuyPrice != nil {
		listing.Price = *item.AuctionInfo.BuyPrice
	}

	if category == model.CategoryBracelet {
		listing.Attrs = decodeBracelet(item.Options)
	} else {
		if item.GradeQuality == nil {
			return model.Listing{}, fmt.Errorf("accessory %q without quality", item.Name)
		}
		listing.Attrs = decodeAccessory(item, *item.GradeQuality)
	}
	listing.ID = model.Fingerprint(listing)
	return listing, nil
}

func categoryOf(name string) (model.Category, bool) {
	for _, c := range categoryByNameToken {
		if strings.Contains(name, c.token) {
			return c.category, true
		}
	}
	return "", false
}

func parseEndDate(raw string, loc *time.Location) (time.Time, error) {
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	t, err := time.ParseInLocation(endDateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse end date: %w", err)
	}
	return t, nil
}

func decodeAccessory(item apiItem, quality int) *model.AccessoryAttrs {
	attrs := &model.AccessoryAttrs{Quality: quality}
	upgrades := 0
	for _, opt := range item.Options {
		if opt.OptionName == enlightenmentOption || opt.OptionName == leapOption || opt.Type == optionTypeArkPassive {
			continue
		}
		if opt.Type == optionTypeUpgrade {
			upgrades++
		}
		name, ok := normalizeOptionName(opt.OptionName, opt.IsValuePercentage)
		if !ok {
			continue
		}
		attrs.Options = append(attrs.Options, model.NewOptionValue(name, opt.Value, opt.IsValuePercentage))
	}
	attrs.Level = upgrades
	if item.AuctionInfo.UpgradeLevel != nil {
		attrs.Level = *item.AuctionInfo.UpgradeLevel
	}
	return attrs
}

// normalizeOptionName maps a market option name to its abbreviation. Attack
// and weapon attack share a name and are split by whether the value is a
// percentage.
func normalizeOptionName(raw string, percent bool) (model.OptionName, bool) {
	name := strings.TrimSpace(raw)
	switch name {
	case attackOptionName:
		if percent {
			return model.OptAttackPercent, true
		}
		return model.OptFlatAttack, true
	case weaponAttackOptionName:
		if percent {
			return model.OptWeaponAttackPercent, true
		}
		return model.OptFlatWeaponAttack, true
	}
	if abb, ok := fullOptionNames[name]; ok {
		return abb, true
	}
	if _, ok := model.OptionScales[model.OptionName(name)]; ok {
		return model.OptionName(name), true
	}
	return "", false
}

func decodeBracelet(opts []apiOption) *model.BraceletAttrs {
	attrs := &model.BraceletAttrs{}
	for _, opt := range opts {
		if opt.Type == optionTypeArkPassive || opt.OptionName == enlightenmentOption || opt.OptionName == leapOption {
			continue
		}
		if opt.Type == optionTypeRandomSlot {
			attrs.ExtraSlots = int(opt.Value)
			continue
		}
		attrs.FixedCount++
		stat := model.Stat{Name: opt.OptionName, Value: opt.Value}
		switch {
		case opt.Type == optionTypeStat && model.IsCombatStat(opt.OptionName):
			attrs.Combat = append(attrs.Combat, stat)
		case opt.Type == optionTypeStat && model.IsBaseStat(opt.OptionName):
			attrs.Base = append(attrs.Base, stat)
		default:
			attrs.Special = append(attrs.Special, stat)
		}
	}
	return attrs
}
