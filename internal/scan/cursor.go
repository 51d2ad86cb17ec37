package scan

import (
	"time"

	"github.com/kimjw0623/find-angel-sub000/internal/market"
)

type Horizon string

const (
	HorizonNear Horizon = "near"
	HorizonFar  Horizon = "far"
)

func (h Horizon) String() string {
	return string(h)
}

// Cursor is the committed progress of one horizon. Watermark is the newest
// expiry already handed to the visitor; it never decreases.
type Cursor struct {
	Horizon      Horizon
	Watermark    *time.Time
	PageEstimate *int
}

type HorizonConfig struct {
	Horizon Horizon
	// Window is how far ahead of now the horizon's listings expire.
	Window time.Duration
	// Buffer is subtracted from now+Window for the initial watermark.
	Buffer    time.Duration
	BatchSize int
	// TrackPage starts each cycle near the last discovered page instead of
	// page 1.
	TrackPage           bool
	InitialPageEstimate int
	// Probe binary searches the starting page on the first cycle.
	// InitialPageEstimate is used when the probe fails.
	Probe bool
	// SkipBeyondWindow ignores listings expiring at or after now+Window.
	SkipBeyondWindow bool
	// MaxPages caps the pages one cycle may walk.
	MaxPages int
	Pause    time.Duration
	Query    market.SearchQuery
}

// FarConfig scans listings that expire around three days out, from page 1.
func FarConfig() HorizonConfig {
	return HorizonConfig{
		Horizon:   HorizonFar,
		Window:    72 * time.Hour,
		Buffer:    3 * time.Minute,
		BatchSize: 5,
		MaxPages:  1000,
		Pause:     time.Second,
		Query:     scanQuery(),
	}
}

// NearConfig scans listings that expire around one day out. Those sit deep
// in the expiry ordered feed, so the starting page is tracked.
func NearConfig() HorizonConfig {
	return HorizonConfig{
		Horizon:             HorizonNear,
		Window:              24 * time.Hour,
		Buffer:              time.Minute,
		BatchSize:           10,
		TrackPage:           true,
		Probe:               true,
		InitialPageEstimate: 500,
		SkipBeyondWindow:    true,
		MaxPages:            1000,
		Pause:               time.Second,
		Query:               scanQuery(),
	}
}

func scanQuery() market.SearchQuery {
	return market.SearchQuery{
		Sort:      market.SortExpireDate,
		Direction: market.DirectionDesc,
	}
}

func (c HorizonConfig) withDefaults() HorizonConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 1000
	}
	if c.InitialPageEstimate <= 0 {
		c.InitialPageEstimate = 1
	}
	return c
}
