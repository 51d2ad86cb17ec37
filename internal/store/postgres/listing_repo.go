package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/store"
)

// upsertChunk keeps each statement well below the 65535 bind parameter limit.
const upsertChunk = 1000

type ListingRepo struct {
	db *DB
}

func NewListingRepo(db *DB) *ListingRepo {
	return &ListingRepo{db: db}
}

var _ store.ListingRepository = (*ListingRepo)(nil)

// UpsertBatch records listings as seen at seenAt. Listings seen again after
// being closed out return to ACTIVE. Duplicate ids in one batch are merged.
func (r *ListingRepo) UpsertBatch(ctx context.Context, listings []model.Listing, seenAt time.Time) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	seen := make(map[string]bool, len(listings))
	unique := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if l.ID == uuid.Nil {
			l.ID = model.Fingerprint(l)
		}
		if seen[l.ID.String()] {
			continue
		}
		seen[l.ID.String()] = true
		unique = append(unique, l)
	}

	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	err := r.db.withTx(ctx, nil, func(tx *sql.Tx) error {
		for start := 0; start < len(unique); start += upsertChunk {
			end := start + upsertChunk
			if end > len(unique) {
				end = len(unique)
			}
			if err := upsertListings(ctx, tx, unique[start:end], seenAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(unique), nil
}

func upsertListings(ctx context.Context, tx *sql.Tx, listings []model.Listing, seenAt time.Time) error {
	const cols = 9
	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO listings (id, name, category, grade, price, trade_limit, expires_at, attrs, first_seen_at, last_seen_at)
		VALUES `)

	args := make([]interface{}, 0, len(listings)*cols)
	for i, l := range listings {
		attrs, err := json.Marshal(l.Attrs)
		if err != nil {
			return fmt.Errorf("marshal attrs of %s: %w", l.ID, err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * cols
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+9)
		args = append(args,
			l.ID, l.Name, string(l.Category), string(l.Grade),
			l.Price, l.TradeLimit, l.Expiry, string(attrs), seenAt,
		)
	}

	sb.WriteString(`
		ON CONFLICT (id) DO UPDATE SET
			price = EXCLUDED.price,
			last_seen_at = GREATEST(listings.last_seen_at, EXCLUDED.last_seen_at),
			status = 'ACTIVE',
			sold_at = NULL,
			updated_at = now()
	`)

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("bulk upsert listings: %w", err)
	}
	return nil
}

func (r *ListingRepo) MarkUnseen(ctx context.Context, scope []model.Category, seenBefore, now time.Time) (store.UnseenResult, error) {
	var result store.UnseenResult
	if len(scope) == 0 {
		return result, nil
	}
	categories := make([]string, len(scope))
	for i, c := range scope {
		categories[i] = string(c)
	}

	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		UPDATE listings SET
			status = CASE WHEN expires_at > $2 THEN 'SOLD' ELSE 'EXPIRED' END,
			sold_at = CASE WHEN expires_at > $2 THEN $2::timestamptz ELSE NULL END,
			updated_at = now()
		WHERE status = 'ACTIVE' AND last_seen_at < $1 AND category = ANY($3)
		RETURNING status
	`, seenBefore, now, pq.Array(categories))
	if err != nil {
		return result, fmt.Errorf("mark unseen listings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return result, fmt.Errorf("scan unseen status: %w", err)
		}
		switch model.ListingStatus(status) {
		case model.ListingStatusSold:
			result.Sold++
		case model.ListingStatusExpired:
			result.Expired++
		}
	}
	return result, rows.Err()
}

const listingColumns = `id, name, category, grade, price, trade_limit, expires_at, attrs, status, first_seen_at, last_seen_at, sold_at`

// Window reads both halves of the generation input from one snapshot.
func (r *ListingRepo) Window(ctx context.Context, asOf time.Time, soldWithin, outcomeWithin time.Duration) (*store.ListingWindow, error) {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	window := &store.ListingWindow{}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := r.db.withTx(ctx, opts, func(tx *sql.Tx) error {
		var err error
		window.Priced, err = queryListings(ctx, tx, `
			SELECT `+listingColumns+` FROM listings
			WHERE status = 'ACTIVE'
			   OR (status = 'SOLD' AND sold_at >= $1 AND sold_at <= $2)
		`, asOf.Add(-soldWithin), asOf)
		if err != nil {
			return fmt.Errorf("query priced listings: %w", err)
		}
		window.Outcomes, err = queryListings(ctx, tx, `
			SELECT `+listingColumns+` FROM listings
			WHERE (status = 'SOLD' AND sold_at >= $1 AND sold_at <= $2)
			   OR (status = 'EXPIRED' AND last_seen_at >= $1 AND last_seen_at <= $2)
		`, asOf.Add(-outcomeWithin), asOf)
		if err != nil {
			return fmt.Errorf("query outcome listings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return window, nil
}

func queryListings(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) ([]model.ListingRecord, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ListingRecord
	for rows.Next() {
		var (
			rec      model.ListingRecord
			category string
			grade    string
			status   string
			attrs    []byte
			soldAt   sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID, &rec.Name, &category, &grade, &rec.Price, &rec.TradeLimit, &rec.Expiry,
			&attrs, &status, &rec.FirstSeenAt, &rec.LastSeenAt, &soldAt,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		rec.Category = model.Category(category)
		rec.Grade = model.Grade(grade)
		rec.Status = model.ListingStatus(status)
		if soldAt.Valid {
			t := soldAt.Time
			rec.SoldAt = &t
		}
		rec.Attrs, err = decodeAttrs(rec.Category, attrs)
		if err != nil {
			return nil, fmt.Errorf("decode attrs of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decodeAttrs(category model.Category, raw []byte) (model.Attributes, error) {
	if category == model.CategoryBracelet {
		var b model.BraceletAttrs
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return &b, nil
	}
	var a model.AccessoryAttrs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
