package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryNecklace Category = "necklace"
	CategoryEarring  Category = "earring"
	CategoryRing     Category = "ring"
	CategoryBracelet Category = "bracelet"
)

func (c Category) String() string {
	return string(c)
}

// IsAccessory reports whether the category is priced with quality buckets
// and exclusive options.
func (c Category) IsAccessory() bool {
	return c == CategoryNecklace || c == CategoryEarring || c == CategoryRing
}

type Grade string

const (
	GradeAncient Grade = "ancient"
	GradeRelic   Grade = "relic"
)

func (g Grade) String() string {
	return string(g)
}

type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "ACTIVE"
	ListingStatusSold    ListingStatus = "SOLD"
	ListingStatusExpired ListingStatus = "EXPIRED"
)

// Attributes is the category specific part of a listing. It is either
// *AccessoryAttrs or *BraceletAttrs.
type Attributes interface {
	isAttributes()
}

type AccessoryAttrs struct {
	Level   int           `json:"level"`
	Quality int           `json:"quality"`
	Options []OptionValue `json:"options"`
}

func (*AccessoryAttrs) isAttributes() {}

// Option returns the option with the given name, if present.
func (a *AccessoryAttrs) Option(name OptionName) (OptionValue, bool) {
	for _, o := range a.Options {
		if o.Name == name {
			return o, true
		}
	}
	return OptionValue{}, false
}

type BraceletAttrs struct {
	FixedCount int    `json:"fixed_count"`
	ExtraSlots int    `json:"extra_slots"`
	Combat     []Stat `json:"combat"`
	Base       []Stat `json:"base"`
	Special    []Stat `json:"special"`
}

func (*BraceletAttrs) isAttributes() {}

// HasSpecial reports whether the bracelet carries the named special effect.
func (b *BraceletAttrs) HasSpecial(name string) bool {
	for _, s := range b.Special {
		if s.Name == name {
			return true
		}
	}
	return false
}

type Stat struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Listing is one decoded search-result row. It is never mutated after decode.
type Listing struct {
	ID         uuid.UUID
	Name       string
	Category   Category
	Grade      Grade
	Price      int64
	TradeLimit int
	Expiry     time.Time
	Attrs      Attributes
}

// Accessory returns the accessory attributes when the listing is an accessory.
func (l Listing) Accessory() (*AccessoryAttrs, bool) {
	a, ok := l.Attrs.(*AccessoryAttrs)
	return a, ok && a != nil
}

// Bracelet returns the bracelet attributes when the listing is a bracelet.
func (l Listing) Bracelet() (*BraceletAttrs, bool) {
	b, ok := l.Attrs.(*BraceletAttrs)
	return b, ok && b != nil
}

// Quality returns the accessory quality, or 0 for bracelets.
func (l Listing) Quality() int {
	if a, ok := l.Accessory(); ok {
		return a.Quality
	}
	return 0
}

var listingNamespace = uuid.MustParse("5b0c1d8e-61a4-4c55-9f3e-2f1c7b9e4a10")

// Fingerprint derives a stable id from the fields that identify one listing
// across searches. Two searches returning the same row yield the same id.
func Fingerprint(l Listing) uuid.UUID {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%d|%d|%d", l.Name, l.Category, l.Grade, l.Price, l.TradeLimit, l.Expiry.UTC().UnixMilli())
	switch attrs := l.Attrs.(type) {
	case *AccessoryAttrs:
		fmt.Fprintf(&b, "|%d|%d", attrs.Level, attrs.Quality)
		opts := make([]string, 0, len(attrs.Options))
		for _, o := range attrs.Options {
			opts = append(opts, string(o.Name)+"="+strconv.FormatFloat(o.Raw, 'f', -1, 64))
		}
		sort.Strings(opts)
		b.WriteString("|" + strings.Join(opts, ","))
	case *BraceletAttrs:
		fmt.Fprintf(&b, "|%d|%d", attrs.FixedCount, attrs.ExtraSlots)
		for _, group := range [][]Stat{attrs.Combat, attrs.Base, attrs.Special} {
			stats := make([]string, 0, len(group))
			for _, s := range group {
				stats = append(stats, s.Name+"="+strconv.FormatFloat(s.Value, 'f', -1, 64))
			}
			sort.Strings(stats)
			b.WriteString("|" + strings.Join(stats, ","))
		}
	}
	return uuid.NewSHA1(listingNamespace, []byte(b.String()))
}

// ListingRecord is a listing as persisted in history, with lifecycle state.
type ListingRecord struct {
	Listing
	Status      ListingStatus
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	SoldAt      *time.Time
}
