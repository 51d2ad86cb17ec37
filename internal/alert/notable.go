package alert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
)

// NotableListing is a listing priced well under its computed fair price.
type NotableListing struct {
	Listing      model.Listing
	FairPrice    int64
	Ratio        float64
	Role         model.Role
	PatternKey   string
	GenerationID uuid.UUID
	Horizon      string
	Success      *model.SuccessStats
}

// Alert renders the event. The cooldown key is the listing fingerprint so
// both horizons reporting one listing produce one message.
func (n NotableListing) Alert() Alert {
	l := n.Listing
	id := l.ID
	if id == uuid.Nil {
		id = model.Fingerprint(l)
	}

	fields := map[string]string{
		"price":      formatGold(l.Price),
		"fair_price": formatGold(n.FairPrice),
		"ratio":      strconv.FormatFloat(n.Ratio, 'f', 2, 64),
		"role":       string(n.Role),
		"pattern":    n.PatternKey,
		"expires_at": l.Expiry.UTC().Format(time.RFC3339),
	}
	if n.Horizon != "" {
		fields["horizon"] = n.Horizon
	}
	if n.Success != nil {
		fields["success_rate"] = fmt.Sprintf("%.0f%% (%d/%d)", n.Success.Rate*100, n.Success.Sold, n.Success.Sold+n.Success.Expired)
	}
	if l.TradeLimit > 0 {
		fields["trade_limit"] = strconv.Itoa(l.TradeLimit)
	}

	return Alert{
		Kind:    KindNotable,
		Key:     "listing:" + id.String(),
		Title:   fmt.Sprintf("%s %s %s", l.Grade, l.Category, l.Name),
		Message: describe(l),
		Fields:  fields,
	}
}

func describe(l model.Listing) string {
	switch attrs := l.Attrs.(type) {
	case *model.AccessoryAttrs:
		opts := make([]string, 0, len(attrs.Options))
		for _, o := range attrs.Options {
			opts = append(opts, fmt.Sprintf("%s %s(%s)", o.Name, strconv.FormatFloat(o.Raw, 'f', -1, 64), o.Bucket))
		}
		sort.Strings(opts)
		return fmt.Sprintf("level %d, quality %d: %s", attrs.Level, attrs.Quality, strings.Join(opts, ", "))
	case *model.BraceletAttrs:
		var stats []string
		for _, group := range [][]model.Stat{attrs.Combat, attrs.Base, attrs.Special} {
			for _, s := range group {
				stats = append(stats, fmt.Sprintf("%s %s", s.Name, strconv.FormatFloat(s.Value, 'f', -1, 64)))
			}
		}
		return fmt.Sprintf("fixed %d, extra %d: %s", attrs.FixedCount, attrs.ExtraSlots, strings.Join(stats, ", "))
	default:
		return ""
	}
}

// formatGold renders a price with thousands separators.
func formatGold(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
