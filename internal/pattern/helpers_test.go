package pattern

import (
	"time"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
)

var asOf = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func necklace(price int64, quality int, opts ...model.OptionValue) model.Listing {
	l := model.Listing{
		Name:     "고대 목걸이",
		Category: model.CategoryNecklace,
		Grade:    model.GradeRelic,
		Price:    price,
		Expiry:   asOf.Add(48 * time.Hour),
		Attrs:    &model.AccessoryAttrs{Level: 3, Quality: quality, Options: opts},
	}
	l.ID = model.Fingerprint(l)
	return l
}

func bracelet(grade model.Grade, price int64, fixed, extra int, combat, base, special []model.Stat) model.Listing {
	l := model.Listing{
		Name:     "팔찌",
		Category: model.CategoryBracelet,
		Grade:    grade,
		Price:    price,
		Expiry:   asOf.Add(48 * time.Hour),
		Attrs: &model.BraceletAttrs{
			FixedCount: fixed,
			ExtraSlots: extra,
			Combat:     combat,
			Base:       base,
			Special:    special,
		},
	}
	l.ID = model.Fingerprint(l)
	return l
}

func stat(name string, v float64) model.Stat {
	return model.Stat{Name: name, Value: v}
}

func opt(name model.OptionName, raw float64) model.OptionValue {
	return model.NewOptionValue(name, raw, false)
}

func active(listings ...model.Listing) []model.ListingRecord {
	out := make([]model.ListingRecord, len(listings))
	for i, l := range listings {
		out[i] = model.ListingRecord{Listing: l, Status: model.ListingStatusActive, FirstSeenAt: asOf, LastSeenAt: asOf}
	}
	return out
}

func withStatus(status model.ListingStatus, listings ...model.Listing) []model.ListingRecord {
	out := active(listings...)
	for i := range out {
		out[i].Status = status
	}
	return out
}
